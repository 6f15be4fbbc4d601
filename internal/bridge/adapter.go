// Package bridge talks to HTTP bridges that front command-line MCP tooling,
// and implements such a bridge for the docker MCP toolkit.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

const (
	DefaultHealthTimeout = 5 * time.Second
	// NameSeparator joins provider and bare tool name in registry names.
	NameSeparator = "__"

	maxResponseSize = 32 << 20
)

// Config configures one HTTP bridge provider.
type Config struct {
	BaseURL       string
	HealthTimeout time.Duration

	// CallTimeout applies only when the caller's context has no deadline.
	CallTimeout time.Duration

	// Catalog replaces DockerCatalog when non-empty.
	Catalog    []CatalogEntry
	HTTPClient *http.Client
}

// Adapter exposes a bridge's catalog as tools named <provider>__<tool>.
type Adapter struct {
	name    string
	baseURL string
	cfg     Config
	client  *http.Client
	logger  *slog.Logger

	tools  []schema.Tool
	status string
}

func NewAdapter(name string, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Adapter{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		client:  client,
		logger:  logger.With("component", "bridge", "provider", name),
	}
}

func (a *Adapter) Name() string              { return a.name }
func (a *Adapter) Kind() schema.ProviderKind { return schema.KindHTTP }
func (a *Adapter) Endpoint() string          { return a.baseURL }

// Status is the readiness message the bridge reported at bootstrap.
func (a *Adapter) Status() string { return a.status }

// Bootstrap checks the bridge's /health endpoint and installs the catalog.
func (a *Adapter) Bootstrap(ctx context.Context) error {
	if a.baseURL == "" {
		return fmt.Errorf("%w: %q: no base URL configured", schema.ErrProviderUnavailable, a.name)
	}
	status, err := a.health(ctx)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", schema.ErrProviderUnavailable, a.name, err)
	}
	a.status = status

	catalog := a.cfg.Catalog
	if len(catalog) == 0 {
		catalog = DockerCatalog()
	}
	tools := make([]schema.Tool, 0, len(catalog))
	for _, entry := range catalog {
		if entry.Name == "" {
			continue
		}
		params, err := schema.ParseParameters(entry.InputSchema)
		if err != nil {
			return fmt.Errorf("%w: %q: catalog entry %q: %v", schema.ErrInvalidConfig, a.name, entry.Name, err)
		}
		bare := entry.Name
		tools = append(tools, schema.NewTool(a.name+NameSeparator+bare, entry.Description, params, schema.KindHTTP, a.name,
			func(ctx context.Context, args map[string]any) (any, error) {
				return a.CallTool(ctx, bare, args)
			}))
	}
	a.tools = tools

	a.logger.Info("connected to MCP HTTP bridge", "url", a.baseURL, "status", status, "tools", len(tools))
	return nil
}

func (a *Adapter) health(ctx context.Context) (string, error) {
	timeout := a.cfg.HealthTimeout
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("bridge health check failed: %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return "", fmt.Errorf("health check: decode: %w", err)
	}
	return body.Status, nil
}

func (a *Adapter) Tools() []schema.Tool { return slices.Clone(a.tools) }

// CallTool posts args to /tools/<name>. Every failure, including transport
// errors, comes back as failure text.
func (a *Adapter) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if _, ok := ctx.Deadline(); !ok && a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}

	body, err := json.Marshal(args)
	if err != nil {
		return schema.Failure("encode arguments: %v", err), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/tools/"+url.PathEscape(name), bytes.NewReader(body))
	if err != nil {
		return schema.Failure("%v", err), nil
	}
	req.Header.Set("Content-Type", "application/json")

	a.logger.Debug("calling HTTP MCP tool", "tool", name)
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("HTTP MCP tool call failed", "tool", name, "err", err)
		return schema.Failure("%v", err), nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return schema.Failure("read response: %v", err), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var failed callResponse
		if json.Unmarshal(data, &failed) == nil && failed.Error != "" {
			msg = failed.Error
		}
		return schema.Failure("HTTP %d: %s", resp.StatusCode, msg), nil
	}
	return normalize(data), nil
}

// Ping re-runs the health check.
func (a *Adapter) Ping(ctx context.Context) error {
	_, err := a.health(ctx)
	return err
}

// Alive is always true: there is no connection to lose between calls.
func (a *Adapter) Alive() bool { return true }

func (a *Adapter) Shutdown(context.Context) error {
	a.client.CloseIdleConnections()
	a.logger.Debug("HTTP MCP provider shut down")
	return nil
}

// callResponse is the body shape the bridge answers tool calls with.
type callResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Stdout  string          `json:"stdout,omitempty"`
	Stderr  string          `json:"stderr,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func normalize(body []byte) any {
	var r callResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return schema.Failure("invalid bridge response: %v", err)
	}
	if !r.Success {
		if r.Error == "" {
			return schema.Failure("Unknown error from MCP bridge")
		}
		return schema.Failure("%s", r.Error)
	}

	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 || string(data) == "null" {
		return r.Stdout
	}
	switch data[0] {
	case '{', '[':
		var structured any
		if err := json.Unmarshal(data, &structured); err == nil {
			return structured
		}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			if s == "" {
				return r.Stdout
			}
			return s
		}
	}
	return string(data)
}
