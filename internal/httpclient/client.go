// Package httpclient is the outbound JSON client used for the OCR and
// chat-completion API. It applies a per-call timeout when the caller's
// context has none, authenticates with a bearer token and caps response
// bodies.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a call whose context carries no deadline
	DefaultTimeout = 60 * time.Second

	// DefaultMaxResponseBytes caps how much of a response body is read
	DefaultMaxResponseBytes int64 = 8 << 20

	defaultUserAgent    = "GardenTracker/1.0"
	defaultIdleConns    = 4
	defaultIdleTimeout  = 90 * time.Second
	defaultDialTimeout  = 15 * time.Second
	defaultTLSTimeout   = 10 * time.Second
	statusPreviewLength = 300
)

// Config configures a Client. Zero fields take defaults.
type Config struct {
	Timeout          time.Duration
	UserAgent        string
	BearerToken      string
	MaxResponseBytes int64

	// Transport replaces the pooled transport, tests use a mock here
	Transport http.RoundTripper
}

// StatusError is returned for a non-2xx response. Body holds a bounded
// preview with the bearer token removed.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Observer is told about every finished call
type Observer func(method, url string, status int, elapsed time.Duration, err error)

// Client posts JSON documents and decodes JSON answers. Safe for concurrent use.
type Client struct {
	http     *http.Client
	cfg      Config
	observer Observer
}

// New creates a client, filling defaults into a copy of cfg
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   defaultIdleConns,
			IdleConnTimeout:       defaultIdleTimeout,
			TLSHandshakeTimeout:   defaultTLSTimeout,
			ResponseHeaderTimeout: cfg.Timeout,
		}
	}

	return &Client{http: &http.Client{Transport: transport}, cfg: cfg}
}

// Observe installs fn as the call observer. Call before first use.
func (c *Client) Observe(fn Observer) {
	c.observer = fn
}

// PostJSON sends payload as JSON to url and decodes a 2xx answer into out.
// A non-2xx answer is returned as *StatusError.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	start := time.Now()
	status, err := c.roundTrip(req, out)
	if c.observer != nil {
		c.observer(req.Method, url, status, time.Since(start), err)
	}
	return err
}

func (c *Client) roundTrip(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       c.preview(data),
		}
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// preview trims a response body for error messages and strips the token
func (c *Client) preview(data []byte) string {
	s := strings.TrimSpace(string(data))
	if c.cfg.BearerToken != "" {
		s = strings.ReplaceAll(s, c.cfg.BearerToken, "[REDACTED]")
	}
	if len(s) > statusPreviewLength {
		s = s[:statusPreviewLength] + "..."
	}
	return s
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
