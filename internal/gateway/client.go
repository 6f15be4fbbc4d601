package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// Client talks to a running gateway. The CLI uses it for inspection and
// one-off invocations.
type Client struct {
	base string
	http *http.Client
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string `json:"status"`
	Providers int    `json:"providers"`
	Tools     int    `json:"tools"`
	Uptime    string `json:"uptime"`
}

// InvokeResult is the body of POST /api/tools/{name}/invoke.
type InvokeResult struct {
	Result  any    `json:"result"`
	Text    string `json:"text"`
	IsError bool   `json:"isError"`
}

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: %s (%d): %s", e.Code, e.Status, e.Message)
}

// NewClient returns a client for base, e.g. "http://127.0.0.1:3003".
// A bare host:port gets an http:// prefix.
func NewClient(base string, timeout time.Duration) *Client {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *Client) ListProviders(ctx context.Context) ([]schema.ProviderSummary, error) {
	var out []schema.ProviderSummary
	err := c.do(ctx, http.MethodGet, "/api/providers", nil, &out)
	return out, err
}

func (c *Client) ProviderHealth(ctx context.Context) ([]schema.ProviderHealth, error) {
	var out []schema.ProviderHealth
	err := c.do(ctx, http.MethodGet, "/api/providers/health", nil, &out)
	return out, err
}

func (c *Client) ListTools(ctx context.Context) ([]schema.ToolSummary, error) {
	var out []schema.ToolSummary
	err := c.do(ctx, http.MethodGet, "/api/tools", nil, &out)
	return out, err
}

// Invoke calls one tool by name. Tool-level failures come back with
// IsError set, not as an error.
func (c *Client) Invoke(ctx context.Context, tool string, args map[string]any) (InvokeResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	var out InvokeResult
	err := c.do(ctx, http.MethodPost, "/api/tools/"+url.PathEscape(tool)+"/invoke", args, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", schema.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope apiError
		apiErr := &APIError{Status: resp.StatusCode, Code: "http_error", Message: resp.Status}
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
