package config

import (
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Mode != "echo" {
		t.Errorf("default mode = %q", cfg.Listen.Mode)
	}
	if cfg.Connect.DialTimeoutSec != 30 {
		t.Errorf("default dial timeout = %d", cfg.Connect.DialTimeoutSec)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secsock.toml")
	data := `
[listen]
addr = "127.0.0.1:9000"
mode = "forward"
forward_to = "127.0.0.1:80"

[tls]
min_version = "1.3"
insecure_skip_verify = true

[log]
session_db = "sessions.db"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Addr != "127.0.0.1:9000" || cfg.Listen.Mode != "forward" {
		t.Errorf("listen section not applied: %+v", cfg.Listen)
	}
	if cfg.Listen.IdleTimeoutSec != 120 {
		t.Errorf("unset key lost its default: %d", cfg.Listen.IdleTimeoutSec)
	}
	if !cfg.TLS.InsecureSkipVerify {
		t.Error("tls section not applied")
	}
	if cfg.Log.SessionDB != "sessions.db" {
		t.Errorf("log section not applied: %+v", cfg.Log)
	}

	v, err := cfg.TLS.MinVersionID()
	if err != nil {
		t.Fatalf("MinVersionID: %v", err)
	}
	if v != tls.VersionTLS13 {
		t.Errorf("MinVersionID = %x, want TLS 1.3", v)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("Load missing file = %v, want ErrFileNotFound", err)
	}
}

func TestValidateMissingTLSFiles(t *testing.T) {
	cfg := Default()
	cfg.TLS.CertFile = filepath.Join(t.TempDir(), "missing.crt")
	cfg.TLS.KeyFile = filepath.Join(t.TempDir(), "missing.key")

	if err := cfg.Validate(); !errors.Is(err, ErrTLSFileMissing) {
		t.Fatalf("Validate = %v, want ErrTLSFileMissing", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad listen addr",
			mutate:  func(c *Config) { c.Listen.Addr = "no-port" },
			wantErr: ErrInvalidListenAddr,
		},
		{
			name:    "bad connect addr",
			mutate:  func(c *Config) { c.Connect.Addr = "host:99999" },
			wantErr: ErrInvalidConnectAddr,
		},
		{
			name:    "bad mode",
			mutate:  func(c *Config) { c.Listen.Mode = "proxy" },
			wantErr: ErrInvalidMode,
		},
		{
			name:    "cert without key",
			mutate:  func(c *Config) { c.TLS.CertFile = "server.crt" },
			wantErr: ErrKeyPairIncomplete,
		},
		{
			name:    "bad min version",
			mutate:  func(c *Config) { c.TLS.MinVersion = "1.1" },
			wantErr: ErrInvalidMinVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
