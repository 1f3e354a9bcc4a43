package agentd

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config configures the programmer-agent daemon's mTLS listener.
type Config struct {
	Port     int    // listener port
	CertFile string // server certificate file
	KeyFile  string // server private key file
	CAFile   string // CA certificate file for client verification
	LogFile  string // optional log file path
}

// DefaultConfig returns the daemon's default listener configuration.
func DefaultConfig() Config {
	return Config{Port: 8443}
}

// Validate checks the configuration and that every referenced file exists.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("agentd: invalid port: %d", c.Port)
	}
	if c.CertFile == "" {
		return fmt.Errorf("agentd: server certificate file is required")
	}
	if c.KeyFile == "" {
		return fmt.Errorf("agentd: server key file is required")
	}
	if c.CAFile == "" {
		return fmt.Errorf("agentd: CA certificate file is required")
	}
	for _, f := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("agentd: file not found: %s", f)
		}
	}
	return nil
}

// LoadTLSConfig builds the server-side mTLS config: present CertFile/
// KeyFile, require and verify a client certificate signed by CAFile.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("agentd: load server certificate: %w", err)
	}
	caCert, err := os.ReadFile(c.CAFile) // #nosec G304 -- operator-specified CA path
	if err != nil {
		return nil, fmt.Errorf("agentd: read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("agentd: parse CA certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientConfig configures a Client connecting to the daemon.
type ClientConfig struct {
	Host     string
	Port     int
	CertFile string // client certificate file
	KeyFile  string // client private key file
	CAFile   string // CA certificate file for server verification
}

// DefaultClientConfig returns the client's default target.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{Host: "localhost", Port: 8443}
}

// Validate checks the client configuration and that every referenced
// file exists.
func (c ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("agentd: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("agentd: invalid port: %d", c.Port)
	}
	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return fmt.Errorf("agentd: client certificate, key, and CA file are required")
	}
	for _, f := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("agentd: file not found: %s", f)
		}
	}
	return nil
}

// LoadTLSConfig builds the client-side mTLS config.
func (c ClientConfig) LoadTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("agentd: load client certificate: %w", err)
	}
	caCert, err := os.ReadFile(c.CAFile) // #nosec G304 -- operator-specified CA path
	if err != nil {
		return nil, fmt.Errorf("agentd: read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("agentd: parse CA certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}
