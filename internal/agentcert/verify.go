package agentcert

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// VerifyLeafFile checks that the certificate at certPath chains to the
// CA certificate at caCertPath, for operators validating a generated
// leaf out of band.
func VerifyLeafFile(certPath, caCertPath string, usage x509.ExtKeyUsage) error {
	certPEM, err := os.ReadFile(certPath) // #nosec G304 -- operator-specified path
	if err != nil {
		return fmt.Errorf("agentcert: read certificate: %w", err)
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return fmt.Errorf("agentcert: decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return fmt.Errorf("agentcert: parse certificate: %w", err)
	}

	caCertPEM, err := os.ReadFile(caCertPath) // #nosec G304 -- operator-specified path
	if err != nil {
		return fmt.Errorf("agentcert: read CA certificate: %w", err)
	}
	caCertBlock, _ := pem.Decode(caCertPEM)
	if caCertBlock == nil {
		return fmt.Errorf("agentcert: decode CA certificate PEM")
	}
	caCert, err := x509.ParseCertificate(caCertBlock.Bytes)
	if err != nil {
		return fmt.Errorf("agentcert: parse CA certificate: %w", err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	opts := x509.VerifyOptions{Roots: roots, KeyUsages: []x509.ExtKeyUsage{usage}}
	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("agentcert: verification failed: %w", err)
	}
	return nil
}
