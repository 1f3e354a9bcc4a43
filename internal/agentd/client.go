package agentd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to an agentd daemon over mTLS, one method per domain
// operation instead of a single generic endpoint-parameterized call,
// since the set of operations here is small and fixed.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient builds a Client from config, loading its mTLS identity.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("agentd: invalid client configuration: %w", err)
	}
	tlsConfig, err := config.LoadTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("agentd: load client TLS config: %w", err)
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}, nil
}

func (c *Client) baseURL() string {
	return fmt.Sprintf("https://%s:%d", c.config.Host, c.config.Port)
}

// CheckHealth confirms the daemon is reachable and serving.
func (c *Client) CheckHealth() error {
	resp, err := c.httpClient.Get(c.baseURL() + "/health")
	if err != nil {
		return fmt.Errorf("agentd: health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agentd: health check: status %d", resp.StatusCode)
	}
	return nil
}

// Scan returns the I2C addresses that ACKed a probe, as "0xNN" strings.
func (c *Client) Scan() ([]string, error) {
	var out scanResponse
	if err := c.getJSON("/scan", &out); err != nil {
		return nil, err
	}
	return out.Addresses, nil
}

// Read reads length bytes at addr/offset.
func (c *Client) Read(addr byte, offset uint16, length int) ([]byte, error) {
	path := fmt.Sprintf("/read?addr=%s&offset=%d&length=%d", byteToHex(addr), offset, length)
	var out readResponse
	if err := c.getJSON(path, &out); err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(out.DataHex)
	if err != nil {
		return nil, fmt.Errorf("agentd: decode read response: %w", err)
	}
	return data, nil
}

// Write writes a single byte at addr/offset.
func (c *Client) Write(addr byte, offset uint16, value byte) error {
	req := writeRequest{Addr: byteToHex(addr), Offset: offset, Value: value}
	return c.postJSON("/write", req, nil)
}

// RSWP enables, disables, or queries reversible write protection on block.
func (c *Client) RSWP(block int, state string) (string, error) {
	req := rswpRequest{Block: block, State: state}
	var out rswpResponse
	if err := c.postJSON("/rswp", req, &out); err != nil {
		return "", err
	}
	return out.State, nil
}

// PSWP enables or queries permanent write protection for addr.
func (c *Client) PSWP(addr byte, state string) (string, error) {
	req := pswpRequest{Addr: byteToHex(addr), State: state}
	var out rswpResponse
	if err := c.postJSON("/pswp", req, &out); err != nil {
		return "", err
	}
	return out.State, nil
}

func (c *Client) getJSON(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL() + path)
	if err != nil {
		return fmt.Errorf("agentd: request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agentd: request %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(path string, in interface{}, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("agentd: encode request %s: %w", path, err)
	}
	resp, err := c.httpClient.Post(c.baseURL()+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("agentd: request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agentd: request %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
