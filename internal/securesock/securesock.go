// Package securesock upgrades an established transport connection to an
// encrypted channel. All cryptographic work (handshake, record layer,
// certificate validation) is delegated to crypto/tls; this package only pairs
// one TLS session object with one transport socket, forwards reads and writes,
// and translates failures into *Error values carrying the failed operation.
package securesock

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// EOFKind distinguishes how a stream ended: via a protocol-level close_notify
// alert or via an abrupt close of the underlying transport. Both surface from
// Read as a plain io.EOF.
type EOFKind int32

const (
	EOFNone EOFKind = iota
	EOFClean
	EOFAbrupt
)

func (k EOFKind) String() string {
	switch k {
	case EOFClean:
		return "clean"
	case EOFAbrupt:
		return "abrupt"
	default:
		return "none"
	}
}

// SecureSocket owns exactly one TLS session object for exactly one transport
// connection. It implements net.Conn; Read and Write transparently complete
// the handshake if Connect or Accept was not called first.
type SecureSocket struct {
	conn    net.Conn
	tracked *trackedConn
	tlsConn *tls.Conn
	role    Role

	eofKind   atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// trackedConn records whether the transport ran out of bytes. crypto/tls folds
// a raw EOF on a record boundary into a plain io.EOF, so without this flag a
// peer dropping the connection is indistinguishable from a close_notify alert,
// which is decrypted and surfaced before the transport itself drains.
type trackedConn struct {
	net.Conn
	eof atomic.Bool
}

func (c *trackedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if errors.Is(err, io.EOF) {
		c.eof.Store(true)
	}
	return n, err
}

// Connect performs the outbound handshake. The socket must come from a client
// context. On failure the underlying connection is closed.
func (s *SecureSocket) Connect(ctx context.Context) error {
	if s.role != RoleClient {
		return &Error{Op: "connect", Err: ErrNotClient}
	}
	if err := s.tlsConn.HandshakeContext(ctx); err != nil {
		s.conn.Close()
		return &Error{Op: "connect", Err: err}
	}
	return nil
}

// Accept performs the inbound handshake. The socket must come from a server
// context. On failure the underlying connection is closed.
func (s *SecureSocket) Accept(ctx context.Context) error {
	if s.role != RoleServer {
		return &Error{Op: "accept", Err: ErrNotServer}
	}
	if err := s.tlsConn.HandshakeContext(ctx); err != nil {
		s.conn.Close()
		return &Error{Op: "accept", Err: err}
	}
	return nil
}

// Read reads decrypted bytes from the session. End of stream is not an error:
// both a clean close_notify and an abrupt transport close return io.EOF, with
// the distinction retained for EOFKind.
func (s *SecureSocket) Read(p []byte) (int, error) {
	n, err := s.tlsConn.Read(p)
	if err == nil {
		return n, nil
	}

	switch {
	case errors.Is(err, io.EOF):
		kind := EOFClean
		if s.tracked.eof.Load() {
			// the transport hit EOF, not a decrypted close_notify
			kind = EOFAbrupt
		}
		s.eofKind.CompareAndSwap(int32(EOFNone), int32(kind))
		return n, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// peer went away mid-record without sending close_notify
		s.eofKind.CompareAndSwap(int32(EOFNone), int32(EOFAbrupt))
		return n, io.EOF
	default:
		return n, &Error{Op: "read", Err: err}
	}
}

// Write encrypts and writes p. Write returns successfully only if the whole
// buffer was written.
func (s *SecureSocket) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.tlsConn.Write(p)
	if err != nil {
		return n, &Error{Op: "write", Err: err}
	}
	return n, nil
}

// Close releases the session and the transport connection. Safe to call more
// than once.
func (s *SecureSocket) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = opError("close", s.tlsConn.Close())
	})
	return s.closeErr
}

// CloseWrite sends the close_notify alert without closing the read side.
func (s *SecureSocket) CloseWrite() error {
	return opError("close", s.tlsConn.CloseWrite())
}

// EOFKind reports how the stream ended, or EOFNone while it is still open.
func (s *SecureSocket) EOFKind() EOFKind {
	return EOFKind(s.eofKind.Load())
}

// HandshakeDone reports whether the handshake has completed.
func (s *SecureSocket) HandshakeDone() bool {
	return s.tlsConn.ConnectionState().HandshakeComplete
}

// ConnectionState exposes the negotiated session parameters.
func (s *SecureSocket) ConnectionState() tls.ConnectionState {
	return s.tlsConn.ConnectionState()
}

// PeerFingerprint returns the fingerprint of the peer's leaf certificate, or
// an empty string if the peer presented none.
func (s *SecureSocket) PeerFingerprint() string {
	certs := s.tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return ""
	}
	return Fingerprint(certs[0].Raw)
}

func (s *SecureSocket) LocalAddr() net.Addr {
	return s.tlsConn.LocalAddr()
}

func (s *SecureSocket) RemoteAddr() net.Addr {
	return s.tlsConn.RemoteAddr()
}

func (s *SecureSocket) SetDeadline(t time.Time) error {
	return s.tlsConn.SetDeadline(t)
}

func (s *SecureSocket) SetReadDeadline(t time.Time) error {
	return s.tlsConn.SetReadDeadline(t)
}

func (s *SecureSocket) SetWriteDeadline(t time.Time) error {
	return s.tlsConn.SetWriteDeadline(t)
}
