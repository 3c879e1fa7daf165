// Package httpclient talks to a running netprobe daemon's monitor
// server.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

// DefaultBaseURL is where `netprobe run` listens by default.
const DefaultBaseURL = "http://localhost:8090"

// ClientOption configures a StatusClient via functional options.
type ClientOption func(*StatusClient)

// StatusClient wraps net/http.Client for the daemon's control
// endpoints.
type StatusClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStatusClient creates a client targeting baseURL. A bare
// host:port is given an http scheme.
func NewStatusClient(baseURL string, opts ...ClientOption) *StatusClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &StatusClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithTimeout overrides the default HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *StatusClient) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *StatusClient) { c.httpClient = hc }
}

// BaseURL returns the resolved base URL.
func (c *StatusClient) BaseURL() string {
	return c.baseURL
}

// GetStatus fetches the scheduler status snapshot.
func (c *StatusClient) GetStatus(
	ctx context.Context,
) (*scenario.SchedulerStatus, error) {
	var status scenario.SchedulerStatus
	if err := c.do(ctx, http.MethodGet, "/status", http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Stop asks the daemon to drain and shut down. It returns once
// the request is accepted, not when the daemon has exited.
func (c *StatusClient) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stop", http.StatusAccepted, nil)
}

// Health reports whether the daemon answers its health check.
func (c *StatusClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", http.StatusOK, nil)
}

func (c *StatusClient) do(
	ctx context.Context,
	method, path string,
	want int,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		return fmt.Errorf(
			"%s %s returned HTTP %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(data)),
		)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
