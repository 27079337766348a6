// Package config loads the optional TOML configuration file. Command line
// flags override anything set here.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"secsock/internal/common/validators"
)

var (
	ErrInvalidListenAddr  = errors.New("config: invalid listen address")
	ErrInvalidConnectAddr = errors.New("config: invalid connect address")
	ErrInvalidMode        = errors.New("config: invalid listen mode")
	ErrInvalidMinVersion  = errors.New("config: invalid tls min version")
	ErrKeyPairIncomplete  = errors.New("config: cert and key must be set together")
	ErrTLSFileMissing     = errors.New("config: tls file does not exist")
	ErrFileNotFound       = errors.New("config: file not found")
)

type Config struct {
	Listen  ListenConfig  `toml:"listen"`
	Connect ConnectConfig `toml:"connect"`
	TLS     TLSConfig     `toml:"tls"`
	Log     LogConfig     `toml:"log"`
}

type ListenConfig struct {
	Addr string `toml:"addr"`
	// Mode is echo, forward or exec.
	Mode string `toml:"mode"`
	// ForwardTo is the upstream address for forward mode.
	ForwardTo string `toml:"forward_to"`
	// Exec is the command line for exec mode.
	Exec string `toml:"exec"`
	// IdleTimeoutSec bounds how long a connection may sit silent. 0 disables.
	IdleTimeoutSec int `toml:"idle_timeout_sec"`
}

type ConnectConfig struct {
	Addr string `toml:"addr"`
	// DialTimeoutSec bounds the TCP connect. Defaults to 30.
	DialTimeoutSec int `toml:"dial_timeout_sec"`
}

type TLSConfig struct {
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ClientCAFile       string `toml:"client_ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	// MinVersion is "1.2" or "1.3". Defaults to "1.2".
	MinVersion string `toml:"min_version"`
}

type LogConfig struct {
	// SessionDB is the path of the sqlite session log. Empty disables it.
	SessionDB string `toml:"session_db"`
	Debug     bool   `toml:"debug"`
}

func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr:           "0.0.0.0:8443",
			Mode:           "echo",
			IdleTimeoutSec: 120,
		},
		Connect: ConnectConfig{
			DialTimeoutSec: 30,
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Listen.Addr != "" && !validators.ValidateListenAddr(c.Listen.Addr) {
		return fmt.Errorf("%w: %q", ErrInvalidListenAddr, c.Listen.Addr)
	}
	if c.Connect.Addr != "" && !validators.ValidateAddr(c.Connect.Addr) {
		return fmt.Errorf("%w: %q", ErrInvalidConnectAddr, c.Connect.Addr)
	}

	switch c.Listen.Mode {
	case "", "echo", "forward", "exec":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Listen.Mode)
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return ErrKeyPairIncomplete
	}
	for _, path := range []string{c.TLS.CertFile, c.TLS.KeyFile, c.TLS.CAFile, c.TLS.ClientCAFile} {
		if path != "" && !validators.ValidateFileExists(path) {
			return fmt.Errorf("%w: %s", ErrTLSFileMissing, path)
		}
	}

	if _, err := c.TLS.MinVersionID(); err != nil {
		return err
	}
	return nil
}

// MinVersionID maps the configured version string to the crypto/tls constant.
func (t TLSConfig) MinVersionID() (uint16, error) {
	switch strings.TrimSpace(t.MinVersion) {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMinVersion, t.MinVersion)
	}
}
