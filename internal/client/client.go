// Package client dials a remote secure socket and pipes it to local stdio.
package client

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/term"

	"secsock/internal/common/logger"
	"secsock/internal/common/validators"
	"secsock/internal/relay"
	"secsock/internal/securesock"
	"secsock/internal/sessionlog"
)

const defaultHandshakeTimeout = 10 * time.Second

// Config holds dialer configuration.
type Config struct {
	// Addr to connect to, host:port.
	Addr string
	// DialTimeout bounds the TCP connect.
	DialTimeout time.Duration
	// HandshakeTimeout bounds the TLS handshake.
	HandshakeTimeout time.Duration
	// Stdin and Stdout default to the process stdio.
	Stdin  io.Reader
	Stdout io.Writer
}

type Client struct {
	lg     *zap.SugaredLogger
	cfg    *Config
	secctx *securesock.Context
	store  *sessionlog.Store
}

// NewClient validates cfg and prepares a dialer. store may be nil to disable
// session recording.
func NewClient(ctx context.Context, secctx *securesock.Context, store *sessionlog.Store, cfg *Config) (*Client, error) {
	lg := logger.FromContext(ctx).Named("client")

	if secctx.Role() != securesock.RoleClient {
		return nil, errors.New("client requires a client context")
	}
	if !validators.ValidateAddr(cfg.Addr) {
		return nil, errors.Errorf("invalid connect address: %q", cfg.Addr)
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	return &Client{lg: lg, cfg: cfg, secctx: secctx, store: store}, nil
}

// Dial establishes the secure connection without running the stdio pipe.
func (c *Client) Dial(ctx context.Context) (*securesock.SecureSocket, error) {
	conn, err := net.DialTimeout("tcp", c.cfg.Addr, c.cfg.DialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", c.cfg.Addr)
	}

	sock := c.secctx.WrapAddr(conn, c.cfg.Addr)
	hsCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()
	if err := sock.Connect(hsCtx); err != nil {
		return nil, err
	}

	state := sock.ConnectionState()
	c.lg.Infof("Secure connection to %s established (%s, %s)",
		c.cfg.Addr, tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))
	if term.IsTerminal(int(os.Stderr.Fd())) {
		c.lg.Debugf("Peer certificate fingerprint: %s", sock.PeerFingerprint())
	}

	return sock, nil
}

// Run dials and relays the secure socket to stdio until either side ends.
func (c *Client) Run(ctx context.Context) error {
	sock, err := c.Dial(ctx)
	if err != nil {
		return err
	}
	defer sock.Close()

	started := time.Now()
	cs := &countingSocket{SecureSocket: sock}
	_, _, relayErr := relay.Join(ctx, &stdio{in: c.cfg.Stdin, out: c.cfg.Stdout}, cs)

	c.recordSession(cs, started)
	c.lg.Infof("Connection to %s closed (in: %d, out: %d, eof: %s)",
		c.cfg.Addr, cs.bytesIn.Load(), cs.bytesOut.Load(), sock.EOFKind())
	return relayErr
}

func (c *Client) recordSession(cs *countingSocket, started time.Time) {
	if c.store == nil {
		return
	}

	state := cs.ConnectionState()
	sess := &sessionlog.Session{
		Role:            "client",
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Record(ctx, sess); err != nil {
		c.lg.Warnf("Failed to record session: %v", err)
	}
}

// stdio adapts the local input and output streams to one ReadWriteCloser end
// of a relay.
type stdio struct {
	in  io.Reader
	out io.Writer
}

func (s *stdio) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s *stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *stdio) Close() error {
	if c, ok := s.in.(io.Closer); ok {
		return c.Close()
	}
	return nil
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
