// Package ocr reads seed packet photos through a remote OCR endpoint and
// turns the text into structured seed packet fields with a chat-completion
// model, retrying once with a fallback model.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/httpclient"
	"github.com/gardentracker/gardentracker/internal/logger"
)

const (
	componentOCR = "ocr"

	ocrEndpoint  = "/ocr"
	chatEndpoint = "/chat/completions"

	maxResponseBytes = 8 << 20
)

// Remote is the OCR and chat-completion API
type Remote interface {
	OCR(ctx context.Context, model, dataURL string) (*OCRResponse, error)
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Page is one page of OCR output
type Page struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// OCRResponse is the OCR endpoint result
type OCRResponse struct {
	Model string `json:"model,omitempty"`
	Pages []Page `json:"pages"`
}

// Message is a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat requests a response encoding from the chat model
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is a chat-completion request. Zero ResponseFormat and
// Temperature are sent as json_object and 0.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client calls the remote API over HTTP with Bearer authentication
type Client struct {
	http    *httpclient.Client
	baseURL string
	log     logger.Logger
}

// ClientOption configures a Client
type ClientOption func(*httpclient.Config)

// WithTransport replaces the HTTP transport
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *httpclient.Config) { c.Transport = rt }
}

// NewClient creates a client for the configured API. Timeout bounds each call.
func NewClient(settings *conf.OCRSettings, log logger.Logger, opts ...ClientOption) *Client {
	cfg := httpclient.Config{
		Timeout:          settings.Timeout,
		BearerToken:      settings.APIKey,
		MaxResponseBytes: maxResponseBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, nil)
	}

	c := &Client{
		http:    httpclient.New(cfg),
		baseURL: strings.TrimRight(settings.BaseURL, "/"),
		log:     log,
	}
	c.http.Observe(func(method, url string, status int, elapsed time.Duration, err error) {
		c.log.Debug("remote API response",
			logger.String("url", url),
			logger.Int("status_code", status),
			logger.Duration("duration", elapsed),
			logger.Bool("failed", err != nil))
	})
	return c
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.Close()
}

// OCR extracts page text from an image data URL
func (c *Client) OCR(ctx context.Context, model, dataURL string) (*OCRResponse, error) {
	req := ocrRequest{
		Model:    model,
		Document: ocrDocument{Type: "image_url", ImageURL: dataURL},
	}
	var resp OCRResponse
	if err := c.post(ctx, ocrEndpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat returns the content of the first completion choice
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if req.ResponseFormat == nil {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	if req.Temperature == nil {
		zero := 0.0
		req.Temperature = &zero
	}

	var resp chatResponse
	if err := c.post(ctx, chatEndpoint, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.Newf("chat completion returned no choices").
			Component(componentOCR).
			Category(errors.CategoryProcessing).
			Context("endpoint", chatEndpoint).
			Context("model", req.Model).
			Build()
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	err := c.http.PostJSON(ctx, c.baseURL+endpoint, payload, out)
	if err == nil {
		return nil
	}

	var statusErr *httpclient.StatusError
	switch {
	case errors.As(err, &statusErr):
		c.log.Warn("remote API returned error status",
			logger.String("endpoint", endpoint),
			logger.Int("status_code", statusErr.StatusCode),
			logger.String("response_preview", statusErr.Body))
		return errors.Newf("%s returned status %d: %s", endpoint, statusErr.StatusCode, statusErr.Body).
			Component(componentOCR).
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Context("status_code", statusErr.StatusCode).
			Build()
	case isDecodeError(err):
		return errors.New(fmt.Errorf("%s: %w", endpoint, err)).
			Component(componentOCR).
			Category(errors.CategoryProcessing).
			Context("endpoint", endpoint).
			Build()
	default:
		c.log.Warn("remote API request failed",
			logger.String("endpoint", endpoint),
			logger.Error(err))
		return errors.New(fmt.Errorf("%s request failed: %w", endpoint, err)).
			Component(componentOCR).
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Build()
	}
}

// isDecodeError reports whether err came from encoding or decoding JSON
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var unsupported *json.UnsupportedTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &unsupported)
}
