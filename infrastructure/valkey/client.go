package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

// DefaultConnectTimeout is the maximum time to wait for initial connection.
const DefaultConnectTimeout = 5 * time.Second

// Config holds the configuration for creating a Valkey client.
type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration // Optional, defaults to DefaultConnectTimeout
}

// Client wraps the valkey-go client with application-specific functionality.
// Create via NewClient and pass as a dependency.
type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

// NewClient creates a new Valkey client instance. The caller is responsible
// for calling Close() when done. Returns an error if the connection cannot
// be established within the timeout.
func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	return &Client{
		inner:     inner,
		keyPrefix: prefix,
	}, nil
}

// Inner returns the underlying valkey-go client for direct command access.
func (c *Client) Inner() valkeylib.Client {
	return c.inner
}

// Close closes the Valkey connection.
func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key prefixes a storage key with the configured namespace.
// Example: Key("marker:message:abc") -> "evobridge:marker:message:abc"
func (c *Client) Key(name string) string {
	return c.keyPrefix + name
}

// IsNil checks if an error returned by the client represents a NIL response.
func IsNil(err error) bool {
	return valkeylib.IsValkeyNil(err)
}
