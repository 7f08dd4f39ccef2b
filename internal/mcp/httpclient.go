package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/fitcourse/internal/workout"
)

// HTTPClient implements Controller by calling the fitcourse REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but the
// player runs on another machine (reached over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies Controller.
var _ Controller = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent on control requests when non-empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values) ([]byte, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("httpclient: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *HTTPClient) state(ctx context.Context, method, path string) (workout.State, error) {
	var st workout.State
	body, status, err := c.do(ctx, method, path, nil)
	if err != nil {
		return st, err
	}
	if status != http.StatusOK {
		return st, fmt.Errorf("httpclient: %s returned %d: %s", path, status, body)
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("httpclient: decode session: %w", err)
	}
	return st, nil
}

func (c *HTTPClient) State(ctx context.Context) (workout.State, error) {
	return c.state(ctx, http.MethodGet, "/api/v1/session")
}

func (c *HTTPClient) Next(ctx context.Context) (workout.State, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/session/next")
}

func (c *HTTPClient) Previous(ctx context.Context) (workout.State, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/session/previous")
}

func (c *HTTPClient) TogglePause(ctx context.Context) (workout.State, error) {
	return c.state(ctx, http.MethodPost, "/api/v1/session/pause")
}

func (c *HTTPClient) CacheReport(ctx context.Context) (*CacheReport, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/v1/cache", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("httpclient: /api/v1/cache returned %d: %s", status, body)
	}

	var report CacheReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("httpclient: decode cache report: %w", err)
	}
	return &report, nil
}

func (c *HTTPClient) InvalidateGIF(ctx context.Context, gifURL string) (bool, error) {
	body, status, err := c.do(ctx, http.MethodDelete, "/api/v1/cache", url.Values{"url": {gifURL}})
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("httpclient: /api/v1/cache returned %d: %s", status, body)
	}
}
