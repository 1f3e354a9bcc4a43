// Package agentcert issues the self-signed CA and server/client leaf
// certificates the programmer-agent daemon uses for mutual TLS.
package agentcert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// Issuer holds a self-signed CA and issues leaf certificates under it.
type Issuer struct {
	caCert *x509.Certificate
	caKey  *rsa.PrivateKey
}

// NewIssuer generates a fresh self-signed CA valid for ten years.
func NewIssuer(organization string) (*Issuer, error) {
	caKey, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return nil, fmt.Errorf("agentcert: generate CA key: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{organization}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         true,

		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("agentcert: create CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("agentcert: parse CA certificate: %w", err)
	}

	return &Issuer{caCert: caCert, caKey: caKey}, nil
}

// LoadIssuer reads a CA certificate and key back from PEM files.
func LoadIssuer(certPath, keyPath string) (*Issuer, error) {
	certPEM, err := os.ReadFile(certPath) // #nosec G304 -- operator-specified CA path
	if err != nil {
		return nil, fmt.Errorf("agentcert: read CA cert: %w", err)
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("agentcert: decode CA cert PEM")
	}
	caCert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("agentcert: parse CA cert: %w", err)
	}

	keyPEM, err := os.ReadFile(keyPath) // #nosec G304 -- operator-specified CA path
	if err != nil {
		return nil, fmt.Errorf("agentcert: read CA key: %w", err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("agentcert: decode CA key PEM")
	}
	caKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("agentcert: parse CA key: %w", err)
	}

	return &Issuer{caCert: caCert, caKey: caKey}, nil
}

// SaveCA writes the CA certificate and private key to PEM files, the
// key with 0600 permissions.
func (i *Issuer) SaveCA(certPath, keyPath string) error {
	if err := writePEMFile(certPath, "CERTIFICATE", i.caCert.Raw, 0o644); err != nil {
		return fmt.Errorf("agentcert: save CA cert: %w", err)
	}
	if err := writePEMFile(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(i.caKey), 0o600); err != nil {
		return fmt.Errorf("agentcert: save CA key: %w", err)
	}
	return nil
}

// Leaf is an issued server or client identity certificate.
type Leaf struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
}

// IssueServerLeaf issues a certificate with ExtKeyUsageServerAuth for
// the given hostnames/IPs, for the daemon's own TLS listener identity.
func (i *Issuer) IssueServerLeaf(commonName string, hosts []string) (*Leaf, error) {
	return i.issueLeaf(commonName, hosts, x509.ExtKeyUsageServerAuth)
}

// IssueClientLeaf issues a certificate with ExtKeyUsageClientAuth, for
// a caller that must authenticate itself to the daemon.
func (i *Issuer) IssueClientLeaf(commonName string) (*Leaf, error) {
	return i.issueLeaf(commonName, nil, x509.ExtKeyUsageClientAuth)
}

func (i *Issuer) issueLeaf(commonName string, hosts []string, usage x509.ExtKeyUsage) (*Leaf, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("agentcert: generate leaf key: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, i.caCert, &key.PublicKey, i.caKey)
	if err != nil {
		return nil, fmt.Errorf("agentcert: create leaf certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("agentcert: parse leaf certificate: %w", err)
	}
	return &Leaf{Certificate: cert, PrivateKey: key}, nil
}

// Save writes the leaf's certificate and private key to PEM files.
func (l *Leaf) Save(certPath, keyPath string) error {
	if err := writePEMFile(certPath, "CERTIFICATE", l.Certificate.Raw, 0o644); err != nil {
		return fmt.Errorf("agentcert: save leaf cert: %w", err)
	}
	if err := writePEMFile(keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(l.PrivateKey), 0o600); err != nil {
		return fmt.Errorf("agentcert: save leaf key: %w", err)
	}
	return nil
}

// CACertPEM returns the CA certificate PEM-encoded, for distribution
// to peers that must verify against this Issuer.
func (i *Issuer) CACertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: i.caCert.Raw})
}

func writePEMFile(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) // #nosec G304 -- operator-specified output path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}
