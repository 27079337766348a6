package securesock

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Role of a Context. Every secure socket created from a context performs the
// handshake on that context's side of the protocol.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Context builds TLS sessions for one role. It is created once and hands out
// a fresh session object per transport socket; all cryptographic work is done
// by crypto/tls.
type Context struct {
	lg        *zap.SugaredLogger
	role      Role
	tlsConfig *tls.Config
}

// ClientConfig holds settings for an outbound context.
type ClientConfig struct {
	// ServerName to verify the peer certificate against. Defaults to the
	// dialed host when sockets are created with WrapAddr.
	ServerName string
	// RootCAFile is a PEM bundle replacing the system roots.
	RootCAFile string
	// CertFile and KeyFile enable mutual TLS.
	CertFile string
	KeyFile  string
	// InsecureSkipVerify disables peer certificate verification.
	InsecureSkipVerify bool
	// MinVersion defaults to TLS 1.2.
	MinVersion uint16
}

// ServerConfig holds settings for an inbound context.
type ServerConfig struct {
	// CertFile and KeyFile hold the server key pair. When both are empty a
	// self-signed certificate is generated.
	CertFile string
	KeyFile  string
	// ClientCAFile enables mutual TLS: clients must present a certificate
	// signed by this CA.
	ClientCAFile string
	// MinVersion defaults to TLS 1.2.
	MinVersion uint16
}

// NewClientContext creates a context for outbound connections.
func NewClientContext(lg *zap.SugaredLogger, config *ClientConfig) (*Context, error) {
	lg = lg.Named("securesock")

	if config == nil {
		config = &ClientConfig{}
	}

	tlsConfig := &tls.Config{
		MinVersion:         minVersion(config.MinVersion),
		ServerName:         config.ServerName,
		InsecureSkipVerify: config.InsecureSkipVerify,
	}
	if config.InsecureSkipVerify {
		lg.Warnf("Peer certificate verification disabled")
	}

	if config.RootCAFile != "" {
		pool, err := LoadCertPool(config.RootCAFile)
		if err != nil {
			return nil, errors.Wrap(err, "load root CA")
		}
		tlsConfig.RootCAs = pool
	}

	if config.CertFile != "" || config.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load client key pair")
		}
		tlsConfig.Certificates = append(tlsConfig.Certificates, cert)
	}

	return &Context{lg: lg, role: RoleClient, tlsConfig: tlsConfig}, nil
}

// NewServerContext creates a context for inbound connections. Without a key
// pair a self-signed certificate is generated, which peers can only accept by
// skipping verification.
func NewServerContext(lg *zap.SugaredLogger, config *ServerConfig) (*Context, error) {
	lg = lg.Named("securesock")

	if config == nil {
		config = &ServerConfig{}
	}

	var err error
	var cert tls.Certificate
	if config.CertFile != "" && config.KeyFile != "" {
		cert, err = tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load server key pair")
		}
		lg.Infof("Using TLS certificate from %s", config.CertFile)
	} else {
		cert, err = GenCertificate("127.0.0.1")
		if err != nil {
			return nil, errors.Wrap(err, "generate self-signed certificate")
		}
		lg.Warnf("No TLS certificate provided, using self-signed certificate [%s]", Fingerprint(cert.Certificate[0]))
	}

	tlsConfig := &tls.Config{
		MinVersion:   minVersion(config.MinVersion),
		Certificates: []tls.Certificate{cert},
	}

	if config.ClientCAFile != "" {
		pool, err := LoadCertPool(config.ClientCAFile)
		if err != nil {
			return nil, errors.Wrap(err, "load client CA")
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		lg.Infof("Client certificates required against CA %s", config.ClientCAFile)
	}

	return &Context{lg: lg, role: RoleServer, tlsConfig: tlsConfig}, nil
}

// Role returns the context's handshake role.
func (c *Context) Role() Role {
	return c.role
}

// NewSecureSocket pairs conn with a fresh TLS session object. The socket owns
// both for its lifetime; closing the socket releases them.
func (c *Context) NewSecureSocket(conn net.Conn) *SecureSocket {
	return c.newSocket(c.tlsConfig, conn)
}

// WrapAddr pairs conn with a session verifying the peer as host (client role
// only). Used by dialers that know the target address but configured no
// explicit server name.
func (c *Context) WrapAddr(conn net.Conn, addr string) *SecureSocket {
	if c.role == RoleClient && c.tlsConfig.ServerName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			cfg := c.tlsConfig.Clone()
			cfg.ServerName = host
			return c.newSocket(cfg, conn)
		}
	}
	return c.NewSecureSocket(conn)
}

func (c *Context) newSocket(cfg *tls.Config, conn net.Conn) *SecureSocket {
	tracked := &trackedConn{Conn: conn}
	var tlsConn *tls.Conn
	if c.role == RoleServer {
		tlsConn = tls.Server(tracked, cfg)
	} else {
		tlsConn = tls.Client(tracked, cfg)
	}

	return &SecureSocket{
		conn:    conn,
		tracked: tracked,
		tlsConn: tlsConn,
		role:    c.role,
	}
}

func minVersion(v uint16) uint16 {
	if v == 0 {
		return tls.VersionTLS12
	}
	return v
}

// LoadCertPool reads a PEM certificate bundle into a pool.
func LoadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
