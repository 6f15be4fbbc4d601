// Package mcp adapts MCP servers running as subprocesses (JSON-RPC over
// stdin/stdout) to the provider contract.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

const maxListPages = 100

// ClientInfo is announced to every server.
var ClientInfo = Implementation{Name: "toolhub", Version: "1.0.0"}

// Adapter owns one stdio MCP server for its whole lifetime.
type Adapter struct {
	name   string
	cfg    ServerConfig
	logger *slog.Logger

	client     *client
	tools      []schema.Tool
	serverInfo Implementation
}

// NewAdapter returns an adapter that has not started its server yet.
func NewAdapter(name string, cfg ServerConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		name:   name,
		cfg:    cfg,
		logger: logger.With("component", "mcp", "server", name),
	}
}

func (a *Adapter) Name() string              { return a.name }
func (a *Adapter) Kind() schema.ProviderKind { return schema.KindStdio }

// Endpoint is the command line the server runs with.
func (a *Adapter) Endpoint() string {
	return strings.TrimSpace(strings.Join(append([]string{a.cfg.Command}, a.cfg.Args...), " "))
}

// ServerInfo returns what the server reported during initialize.
func (a *Adapter) ServerInfo() Implementation { return a.serverInfo }

// Bootstrap starts the server, runs the initialize handshake and caches the
// tool list. On failure the process is gone and the error wraps
// schema.ErrProviderUnavailable.
func (a *Adapter) Bootstrap(ctx context.Context) error {
	if a.client != nil {
		return fmt.Errorf("MCP server %q already bootstrapped", a.name)
	}

	c := newClient(a.name, a.cfg, a.logger)
	if err := c.start(); err != nil {
		return fmt.Errorf("%w: %q: %v", schema.ErrProviderUnavailable, a.name, err)
	}
	a.client = c

	hctx, cancel := context.WithTimeout(ctx, a.cfg.handshakeTimeout())
	defer cancel()

	defs, err := a.handshake(hctx)
	if err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*gracePeriod)
		defer closeCancel()
		_ = c.close(closeCtx)
		return fmt.Errorf("%w: %q: %v", schema.ErrProviderUnavailable, a.name, err)
	}

	a.tools = a.wrapTools(defs)
	a.logger.Info("MCP server connected", "tools", len(a.tools), "server_name", a.serverInfo.Name)
	return nil
}

func (a *Adapter) handshake(ctx context.Context) ([]ToolDefinition, error) {
	raw, err := a.client.call(ctx, "initialize", InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      ClientInfo,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	var init InitializeResult
	if err := json.Unmarshal(raw, &init); err != nil {
		return nil, fmt.Errorf("initialize: decode result: %w", err)
	}
	a.serverInfo = init.ServerInfo

	if err := a.client.notify("notifications/initialized", nil); err != nil {
		return nil, fmt.Errorf("initialized notification: %w", err)
	}

	var defs []ToolDefinition
	cursor := ""
	for page := 0; page < maxListPages; page++ {
		raw, err := a.client.call(ctx, "tools/list", ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("tools/list: %w", err)
		}
		var list ListToolsResult
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("tools/list: decode result: %w", err)
		}
		defs = append(defs, list.Tools...)
		if list.NextCursor == "" {
			break
		}
		cursor = list.NextCursor
	}
	return defs, nil
}

// Tools returns the list cached at bootstrap.
func (a *Adapter) Tools() []schema.Tool { return slices.Clone(a.tools) }

// CallTool runs tools/call. JSON-RPC errors and isError results come back as
// failure text; only transport faults (timeout, crash) are Go errors.
func (a *Adapter) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if a.client == nil {
		return nil, fmt.Errorf("%w: %q not bootstrapped", schema.ErrProviderUnavailable, a.name)
	}
	if args == nil {
		args = map[string]any{}
	}

	raw, err := a.client.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: args})
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return schema.Failure("%s", rpcErr.Message), nil
		}
		return nil, err
	}
	return decodeCallResult(raw), nil
}

// Ping checks the server answers. Servers without ping support count as
// alive.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("%w: %q not bootstrapped", schema.ErrProviderUnavailable, a.name)
	}
	start := time.Now()
	_, err := a.client.call(ctx, "ping", nil)
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == codeMethodNotFound {
		err = nil
	}
	a.logger.Debug("MCP ping", "latency", time.Since(start), "err", err)
	return err
}

// Alive is false once the process has exited.
func (a *Adapter) Alive() bool {
	return a.client != nil && a.client.alive()
}

// Shutdown stops the server. It is idempotent and never fails for a
// process that already exited.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.close(ctx)
}
