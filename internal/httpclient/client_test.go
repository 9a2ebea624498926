package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://api.example.test/v1/ocr"

func newMockClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	cfg.Transport = transport
	c := New(cfg)
	t.Cleanup(c.Close)
	return c, transport
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	defer c.Close()

	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
	assert.Equal(t, defaultUserAgent, c.cfg.UserAgent)
	assert.Equal(t, DefaultMaxResponseBytes, c.cfg.MaxResponseBytes)
	transport, ok := c.http.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultTimeout, transport.ResponseHeaderTimeout)
}

func TestPostJSON(t *testing.T) {
	t.Parallel()
	c, transport := newMockClient(t, Config{BearerToken: "secret", UserAgent: "test-agent"})

	transport.RegisterResponder(http.MethodPost, testURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, "test-agent", req.Header.Get("User-Agent"))
		_, hasDeadline := req.Context().Deadline()
		assert.True(t, hasDeadline, "default timeout should apply")

		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "packet", body["name"])
		return httpmock.NewJsonResponse(http.StatusOK, map[string]int{"pages": 2})
	})

	var out struct {
		Pages int `json:"pages"`
	}
	require.NoError(t, c.PostJSON(t.Context(), testURL, map[string]string{"name": "packet"}, &out))
	assert.Equal(t, 2, out.Pages)
}

func TestPostJSONKeepsCallerDeadline(t *testing.T) {
	t.Parallel()
	c, transport := newMockClient(t, Config{Timeout: time.Hour})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	want, _ := ctx.Deadline()

	transport.RegisterResponder(http.MethodPost, testURL, func(req *http.Request) (*http.Response, error) {
		got, ok := req.Context().Deadline()
		assert.True(t, ok)
		assert.Equal(t, want, got)
		return httpmock.NewStringResponse(http.StatusOK, `{}`), nil
	})

	require.NoError(t, c.PostJSON(ctx, testURL, struct{}{}, nil))
}

func TestPostJSONStatusError(t *testing.T) {
	t.Parallel()
	c, transport := newMockClient(t, Config{BearerToken: "secret"})

	long := strings.Repeat("x", 500)
	transport.RegisterResponder(http.MethodPost, testURL,
		httpmock.NewStringResponder(http.StatusTooManyRequests, "bad key secret "+long))

	err := c.PostJSON(t.Context(), testURL, struct{}{}, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.NotContains(t, statusErr.Body, "secret")
	assert.True(t, strings.HasPrefix(statusErr.Body, "bad key [REDACTED]"))
	assert.True(t, strings.HasSuffix(statusErr.Body, "..."))
	assert.Len(t, statusErr.Body, statusPreviewLength+3)
}

func TestPostJSONDecodeError(t *testing.T) {
	t.Parallel()
	c, transport := newMockClient(t, Config{})

	transport.RegisterResponder(http.MethodPost, testURL,
		httpmock.NewStringResponder(http.StatusOK, `<html>gateway</html>`))

	var out map[string]any
	err := c.PostJSON(t.Context(), testURL, struct{}{}, &out)
	require.Error(t, err)
	var syntaxErr *json.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}

func TestPostJSONResponseLimit(t *testing.T) {
	t.Parallel()
	c, transport := newMockClient(t, Config{MaxResponseBytes: 8})

	transport.RegisterResponder(http.MethodPost, testURL,
		httpmock.NewStringResponder(http.StatusOK, `{"text":"much longer than eight bytes"}`))

	var out map[string]string
	err := c.PostJSON(t.Context(), testURL, struct{}{}, &out)
	require.Error(t, err, "truncated body must not decode")
}

func TestObserver(t *testing.T) {
	t.Parallel()
	c, transport := newMockClient(t, Config{})

	var calls atomic.Int32
	var lastStatus atomic.Int32
	c.Observe(func(method, url string, status int, elapsed time.Duration, err error) {
		calls.Add(1)
		lastStatus.Store(int32(status))
		assert.Equal(t, http.MethodPost, method)
		assert.Equal(t, testURL, url)
	})

	transport.RegisterResponder(http.MethodPost, testURL, httpmock.NewStringResponder(http.StatusOK, `{}`))
	require.NoError(t, c.PostJSON(t.Context(), testURL, struct{}{}, nil))

	transport.RegisterResponder(http.MethodPost, testURL, httpmock.NewErrorResponder(errors.New("connection refused")))
	require.Error(t, c.PostJSON(t.Context(), testURL, struct{}{}, nil))

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(0), lastStatus.Load())
}

func TestStatusErrorMessage(t *testing.T) {
	t.Parallel()
	err := &StatusError{URL: testURL, StatusCode: 502, Body: "upstream"}
	assert.Equal(t, testURL+" returned status 502: upstream", err.Error())
}
