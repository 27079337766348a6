package network

import (
	"net"
	"time"
)

// TimeoutConn resets the connection deadline before every read and write, so
// an idle peer eventually fails the blocked call instead of hanging forever.
type TimeoutConn struct {
	net.Conn
	Timeout time.Duration
}

// NewTimeoutConn creates new TimeoutConn
func NewTimeoutConn(conn net.Conn, timeout time.Duration) *TimeoutConn {
	return &TimeoutConn{
		Conn:    conn,
		Timeout: timeout,
	}
}

// SetTimeout sets timeout for connection. Zero disables the timeout and
// clears any deadline armed by an earlier read or write.
func (t *TimeoutConn) SetTimeout(timeout time.Duration) {
	t.Timeout = timeout
	if timeout == 0 {
		t.Conn.SetDeadline(time.Time{})
	}
}

// Read reads data from connection with deadline
func (t *TimeoutConn) Read(b []byte) (int, error) {
	if t.Timeout != 0 {
		t.Conn.SetReadDeadline(time.Now().Add(t.Timeout))
	}
	return t.Conn.Read(b)
}

// Write writes data to connection with deadline
func (t *TimeoutConn) Write(b []byte) (int, error) {
	if t.Timeout != 0 {
		t.Conn.SetWriteDeadline(time.Now().Add(t.Timeout))
	}
	return t.Conn.Write(b)
}
