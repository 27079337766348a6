package securesock

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"slices"
	"testing"
)

func TestGenCertificate(t *testing.T) {
	cert, err := GenCertificate("secsock.test")
	if err != nil {
		t.Fatalf("GenCertificate: %v", err)
	}

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("parse generated cert: %v", err)
	}

	if parsed.Subject.CommonName != "secsock.test" {
		t.Errorf("CommonName = %q", parsed.Subject.CommonName)
	}
	if !slices.Contains(parsed.DNSNames, "localhost") {
		t.Errorf("DNSNames %v missing localhost", parsed.DNSNames)
	}
	if !slices.Contains(parsed.DNSNames, "secsock.test") {
		t.Errorf("DNSNames %v missing cn", parsed.DNSNames)
	}
}

func TestWriteKeyPair(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")

	fp, err := WriteKeyPair("secsock.test", certPath, keyPath)
	if err != nil {
		t.Fatalf("WriteKeyPair: %v", err)
	}
	if len(fp) != 16 {
		t.Errorf("fingerprint %q, want 16 hex chars", fp)
	}

	// pair must round-trip through the library loader
	loaded, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadX509KeyPair: %v", err)
	}
	if got := Fingerprint(loaded.Certificate[0]); got != fp {
		t.Errorf("fingerprint after reload = %q, want %q", got, fp)
	}
}

func TestLoadCertPool(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "ca.crt")
	keyPath := filepath.Join(dir, "ca.key")
	if _, err := WriteKeyPair("pool.test", certPath, keyPath); err != nil {
		t.Fatalf("WriteKeyPair: %v", err)
	}

	if _, err := LoadCertPool(certPath); err != nil {
		t.Fatalf("LoadCertPool: %v", err)
	}
	if _, err := LoadCertPool(keyPath); err == nil {
		t.Fatal("LoadCertPool on a key file did not fail")
	}
}
