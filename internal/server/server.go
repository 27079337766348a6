// Package server accepts TCP connections, upgrades them to secure sockets and
// runs the configured session handler over them.
package server

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/shlex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"secsock/internal/common/logger"
	"secsock/internal/common/network"
	"secsock/internal/common/validators"
	"secsock/internal/relay"
	"secsock/internal/securesock"
	"secsock/internal/sessionlog"
)

const (
	ModeEcho    = "echo"
	ModeForward = "forward"
	ModeExec    = "exec"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	dialTimeout             = 10 * time.Second
)

// Config holds listener configuration.
type Config struct {
	// Addr to listen on, host:port.
	Addr string
	// Mode selects the session handler: echo, forward or exec.
	Mode string
	// ForwardTo is the upstream address for forward mode.
	ForwardTo string
	// Exec is the command line for exec mode.
	Exec string
	// IdleTimeout bounds how long a session may sit silent. 0 disables.
	IdleTimeout time.Duration
	// HandshakeTimeout bounds the TLS handshake.
	HandshakeTimeout time.Duration
}

type Listener struct {
	lg       *zap.SugaredLogger
	cfg      *Config
	secctx   *securesock.Context
	store    *sessionlog.Store
	execArgv []string

	mu          sync.Mutex
	tcpListener net.Listener
}

// NewListener validates cfg and prepares a listener. store may be nil to
// disable session recording.
func NewListener(ctx context.Context, secctx *securesock.Context, store *sessionlog.Store, cfg *Config) (*Listener, error) {
	lg := logger.FromContext(ctx).Named("server")

	if secctx.Role() != securesock.RoleServer {
		return nil, errors.New("listener requires a server context")
	}
	if !validators.ValidateListenAddr(cfg.Addr) {
		return nil, errors.Errorf("invalid listen address: %q", cfg.Addr)
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	l := &Listener{
		lg:     lg,
		cfg:    cfg,
		secctx: secctx,
		store:  store,
	}

	switch cfg.Mode {
	case "", ModeEcho:
		cfg.Mode = ModeEcho
	case ModeForward:
		if !validators.ValidateAddr(cfg.ForwardTo) {
			return nil, errors.Errorf("invalid forward address: %q", cfg.ForwardTo)
		}
	case ModeExec:
		argv, err := shlex.Split(cfg.Exec)
		if err != nil {
			return nil, errors.Wrap(err, "parse exec command")
		}
		if len(argv) == 0 {
			return nil, errors.New("exec mode requires a command")
		}
		l.execArgv = argv
	default:
		return nil, errors.Errorf("unknown mode: %q", cfg.Mode)
	}

	return l, nil
}

// Start starts serving until ctx is cancelled or the listener fails.
func (l *Listener) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", l.cfg.Addr)
	}
	l.mu.Lock()
	l.tcpListener = listener
	l.mu.Unlock()
	l.lg.Infof("Listener started at %s (%s mode)", listener.Addr(), l.cfg.Mode)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return errors.Wrap(err, "accept connection")
			}
			go l.handleConnection(ctx, conn)
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		if err := l.Close(); err != nil {
			l.lg.Warnf("Close listener: %v", err)
		}
		l.lg.Info("Stop listener")
		return nil
	})

	return g.Wait()
}

// Addr returns the bound address once Start has been called.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tcpListener == nil {
		return nil
	}
	return l.tcpListener.Addr()
}

// Close closes listener if it's active
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tcpListener != nil {
		return l.tcpListener.Close()
	}
	return nil
}

func (l *Listener) handleConnection(ctx context.Context, conn net.Conn) {
	lg := l.lg
	lg.Debugf("New TCP connection from %s", conn.RemoteAddr())

	transport := network.NewTimeoutConn(conn, l.cfg.HandshakeTimeout)
	sock := l.secctx.NewSecureSocket(transport)
	defer sock.Close()

	hsCtx, cancel := context.WithTimeout(ctx, l.cfg.HandshakeTimeout)
	defer cancel()
	if err := sock.Accept(hsCtx); err != nil {
		lg.Errorf("TLS handshake failed from %s: %v", conn.RemoteAddr(), err)
		return
	}
	// the handshake budget no longer applies, hand over to the idle budget
	transport.SetTimeout(l.cfg.IdleTimeout)

	state := sock.ConnectionState()
	lg.Infof("New secure connection from %s (%s, %s)",
		conn.RemoteAddr(), tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))

	cs := &countingSocket{SecureSocket: sock}
	started := time.Now()

	var err error
	switch l.cfg.Mode {
	case ModeForward:
		err = l.handleForward(ctx, cs)
	case ModeExec:
		err = l.handleExec(ctx, cs)
	default:
		err = l.handleEcho(cs)
	}
	if err != nil {
		lg.Warnf("Session from %s ended with error: %v", conn.RemoteAddr(), err)
	}

	l.recordSession(cs, started)
	lg.Infof("Connection closed from %s (in: %d, out: %d, eof: %s)",
		conn.RemoteAddr(), cs.bytesIn.Load(), cs.bytesOut.Load(), sock.EOFKind())
}

func (l *Listener) handleEcho(cs *countingSocket) error {
	_, err := io.Copy(cs, cs)
	return err
}

func (l *Listener) handleForward(ctx context.Context, cs *countingSocket) error {
	upstream, err := net.DialTimeout("tcp", l.cfg.ForwardTo, dialTimeout)
	if err != nil {
		return errors.Wrapf(err, "dial upstream %s", l.cfg.ForwardTo)
	}
	l.lg.Debugf("Forwarding %s to %s", cs.RemoteAddr(), l.cfg.ForwardTo)

	_, _, err = relay.Join(ctx, cs, upstream)
	return err
}

func (l *Listener) handleExec(ctx context.Context, cs *countingSocket) error {
	cmd := exec.CommandContext(ctx, l.execArgv[0], l.execArgv[1:]...)
	cmd.Stdin = cs
	cmd.Stdout = cs
	cmd.Stderr = cs
	return cmd.Run()
}

func (l *Listener) recordSession(cs *countingSocket, started time.Time) {
	if l.store == nil {
		return
	}

	state := cs.ConnectionState()
	sess := &sessionlog.Session{
		Role:            "server",
		LocalAddr:       cs.LocalAddr().String(),
		RemoteAddr:      cs.RemoteAddr().String(),
		TLSVersion:      tls.VersionName(state.Version),
		CipherSuite:     tls.CipherSuiteName(state.CipherSuite),
		PeerFingerprint: cs.PeerFingerprint(),
		BytesIn:         cs.bytesIn.Load(),
		BytesOut:        cs.bytesOut.Load(),
		EOFKind:         cs.EOFKind().String(),
		StartedAt:       started,
		EndedAt:         time.Now(),
	}

	// the connection context may already be gone on shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Record(ctx, sess); err != nil {
		l.lg.Warnf("Failed to record session: %v", err)
	}
}

// countingSocket tracks decrypted payload bytes moved in each direction.
type countingSocket struct {
	*securesock.SecureSocket
	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

func (c *countingSocket) Read(p []byte) (int, error) {
	n, err := c.SecureSocket.Read(p)
	c.bytesIn.Add(int64(n))
	return n, err
}

func (c *countingSocket) Write(p []byte) (int, error) {
	n, err := c.SecureSocket.Write(p)
	c.bytesOut.Add(int64(n))
	return n, err
}
