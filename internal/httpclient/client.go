// Package httpclient provides the HTTP GET client used to download rule documents
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response size (100MB)
	MaxResponseSize = 100 * 1024 * 1024

	// BrowserUserAgent mimics a desktop browser. Some rule hosts reject
	// non-browser agents.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Client is an interface for HTTP operations
type Client interface {
	// Get performs an HTTP GET request and returns the response body
	Get(ctx context.Context, url string) ([]byte, error)
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithHeaders sets the request headers sent with every request
func WithHeaders(headers map[string]string) Option {
	return func(c *DefaultClient) {
		c.headers = make(http.Header, len(headers))
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Responses from such a client can be tampered with in transit.
func WithInsecureSkipVerify() Option {
	return func(c *DefaultClient) {
		c.insecure = true
	}
}

// WithTransport replaces the underlying round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *DefaultClient) {
		c.transport = rt
	}
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client    *http.Client
	timeout   time.Duration
	headers   http.Header
	insecure  bool
	transport http.RoundTripper
}

// NewDefaultClient creates a new default HTTP client with the specified timeout
// If timeout is 0, uses DefaultTimeout
func NewDefaultClient(timeout time.Duration, opts ...Option) *DefaultClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	c := &DefaultClient{
		timeout: timeout,
		headers: http.Header{"User-Agent": []string{BrowserUserAgent}},
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := c.transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if c.insecure {
			//nolint:gosec // G402: verification is disabled on request of the caller
			base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		transport = base
	}

	c.client = &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	return c
}

// Insecure reports whether TLS certificate verification is disabled
func (c *DefaultClient) Insecure() bool {
	return c.insecure
}

// Get performs an HTTP GET request
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(resp.StatusCode, url, resp.Status)
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrResponseTooLarge, resp.ContentLength, MaxResponseSize)
	}

	// +1 to detect if limit exceeded
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("%w: limit %d", ErrResponseTooLarge, MaxResponseSize)
	}

	return body, nil
}
