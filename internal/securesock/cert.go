package securesock

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
)

// GenCertificate generates a self-signed ECDSA certificate for cn, valid for
// localhost use out of the box.
func GenCertificate(cn string) (tls.Certificate, error) {
	now := time.Now()

	template := &x509.Certificate{
		Subject: pkix.Name{
			CommonName: cn,
		},
		SerialNumber:          big.NewInt(now.Unix()),
		NotBefore:             now.AddDate(0, 0, -4),
		NotAfter:              now.AddDate(0, 3, 0),
		BasicConstraintsValid: true,
		IsCA:                  true,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		KeyUsage: x509.KeyUsageDigitalSignature |
			x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		DNSNames:    []string{"localhost", cn},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "generate private key")
	}

	pubKeyBytes, err := x509.MarshalPKIXPublicKey(privKey.Public())
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "marshal public key")
	}
	subjectKeyId := sha1.Sum(pubKeyBytes)
	template.SubjectKeyId = subjectKeyId[:]

	cert, err := x509.CreateCertificate(rand.Reader, template, template, privKey.Public(), privKey)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "create certificate")
	}

	var outCert tls.Certificate
	outCert.Certificate = append(outCert.Certificate, cert)
	outCert.PrivateKey = privKey

	return outCert, nil
}

// WriteKeyPair generates a self-signed certificate for cn and writes it to
// certPath/keyPath as PEM. Returns the certificate fingerprint.
func WriteKeyPair(cn, certPath, keyPath string) (string, error) {
	cert, err := GenCertificate(cn)
	if err != nil {
		return "", err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return "", errors.Wrap(err, "write certificate")
	}

	keyDER, err := x509.MarshalECPrivateKey(cert.PrivateKey.(*ecdsa.PrivateKey))
	if err != nil {
		return "", errors.Wrap(err, "marshal private key")
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return "", errors.Wrap(err, "write private key")
	}

	return Fingerprint(cert.Certificate[0]), nil
}

// Fingerprint returns a short identifier of a DER-encoded certificate, used
// in logs and session records.
func Fingerprint(der []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(der))
}
