// Package httputil provides JSON response helpers and the upstream HTTP client.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/R3E-Network/vault_gateway/internal/metrics"
)

const (
	maxUpstreamResponseBytes  = 16 << 20 // 16 MiB, the verified token list is large
	maxUpstreamErrorBodyBytes = 32 << 10 // 32 KiB
)

// UpstreamError is returned when an upstream answers with a non-2xx status.
type UpstreamError struct {
	Target     string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s responded with status %d", e.Target, e.StatusCode)
	}
	return fmt.Sprintf("%s responded with status %d: %s", e.Target, e.StatusCode, e.Body)
}

// Client performs JSON request/response calls against one upstream base URL.
// It keeps no session state and never retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	target     string
	headers    map[string]string
}

// ClientConfig configures an upstream client.
type ClientConfig struct {
	// Target names the upstream in errors and metrics, e.g. "jupiter".
	Target  string
	BaseURL string
	Timeout time.Duration
	// Headers are sent on every request; empty values are skipped.
	Headers    map[string]string
	HTTPClient *http.Client
}

// NewClient creates an upstream client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	target := cfg.Target
	if target == "" {
		target = "upstream"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		target:     target,
		headers:    cfg.Headers,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, nil)
}

// PostJSON performs a POST with a JSON body and returns the raw response body.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body, nil)
}

// Do executes one request. extra headers override the configured defaults.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}, extra map[string]string) ([]byte, error) {
	start := time.Now()
	data, err := c.do(ctx, method, path, query, body, extra)
	metrics.RecordUpstreamCall(c.target, time.Since(start), err)
	return data, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, extra map[string]string) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request body: %w", c.target, err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.target, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	for k, v := range extra {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, truncated, readErr := ReadAllWithLimit(resp.Body, maxUpstreamErrorBodyBytes)
		if readErr != nil {
			return nil, fmt.Errorf("read %s error response: %w", c.target, readErr)
		}
		msg := strings.TrimSpace(string(respBody))
		if truncated {
			msg += "...(truncated)"
		}
		return nil, &UpstreamError{Target: c.target, StatusCode: resp.StatusCode, Body: msg}
	}

	respBody, err := ReadAllStrict(resp.Body, maxUpstreamResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.target, err)
	}
	return respBody, nil
}
