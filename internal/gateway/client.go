// Package gateway performs HTTP calls to the remote processing and data
// services. It never retries; callers decide what a failure means.
package gateway

import (
	"bytes"
	"context"
	"cropstudy/internal/observability"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// maxBodySize bounds responses read into memory.
const maxBodySize = 64 << 20

// Client is safe for concurrent use.
type Client struct {
	client  *http.Client
	metrics *observability.Metrics
}

// NewClient creates a client with the given timeouts and standard transport
// settings. metrics may be nil.
func NewClient(cfg Config, metrics *observability.Metrics) *Client {
	cfg = cfg.withDefaults()
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	return &Client{
		client: &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		metrics: metrics,
	}
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url, credential string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, credential, "", nil)
}

// Post sends body to url and returns the response body.
func (c *Client) Post(ctx context.Context, url, credential, contentType string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, credential, contentType, body)
}

func (c *Client) do(ctx context.Context, method, url, credential, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.record(ctx, method, 0, start)
		return nil, &TransportError{Cause: err}
	}
	defer resp.Body.Close()
	c.record(ctx, method, resp.StatusCode, start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{Code: resp.StatusCode, Message: summarize(data)}
	}
	return data, nil
}

func (c *Client) record(ctx context.Context, method string, status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordGatewayRequest(ctx, method, status, time.Since(start).Seconds())
	}
}

// summarize keeps the start of an error body for messages.
func summarize(body []byte) string {
	const limit = 256
	s := string(bytes.TrimSpace(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// HTTPStatusError is a non-2xx response.
type HTTPStatusError struct {
	Code    int
	Message string
}

func (e *HTTPStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// TransportError is a failure to get a response: DNS, connect, timeout, or a
// broken body.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsClientError returns true for 4xx errors (shouldn't retry).
func IsClientError(err error) bool {
	var he *HTTPStatusError
	if errors.As(err, &he) {
		return he.Code >= 400 && he.Code < 500
	}
	return false
}

// IsTransient returns true for errors that may succeed on a later attempt:
// transport failures and 5xx responses. Context cancellation is not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var he *HTTPStatusError
	if errors.As(err, &he) {
		return he.Code >= 500
	}
	return false
}
