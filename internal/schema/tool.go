// Package schema holds the value types shared by every toolhub package:
// the tool descriptor, its parameter schema, summaries handed to outer
// layers, and the error taxonomy.
package schema

import (
	"context"
	"fmt"
	"sync/atomic"
)

// ProviderKind identifies where a tool's implementation lives.
type ProviderKind string

const (
	KindStdio   ProviderKind = "stdio-mcp"
	KindHTTP    ProviderKind = "http-mcp"
	KindDynamic ProviderKind = "local-dynamic"
)

// InvokeFunc executes a tool. A non-nil error means the call never reached
// the tool (crash, timeout); tool-level failures are returned as values.
type InvokeFunc func(ctx context.Context, args map[string]any) (any, error)

var toolSerial atomic.Uint64

// Tool is an immutable descriptor of one invokable capability.
type Tool struct {
	name        string
	description string
	params      *Parameters
	kind        ProviderKind
	provider    string
	invoke      InvokeFunc
	serial      uint64
}

// NewTool builds a Tool. A nil params is replaced by an empty object schema.
func NewTool(name, description string, params *Parameters, kind ProviderKind, provider string, invoke InvokeFunc) Tool {
	if params == nil {
		params = EmptyParameters()
	}
	return Tool{
		name:        name,
		description: description,
		params:      params,
		kind:        kind,
		provider:    provider,
		invoke:      invoke,
		serial:      toolSerial.Add(1),
	}
}

func (t Tool) Name() string            { return t.name }
func (t Tool) Description() string     { return t.description }
func (t Tool) Parameters() *Parameters { return t.params }
func (t Tool) Kind() ProviderKind      { return t.kind }
func (t Tool) Provider() string        { return t.provider }
func (t Tool) IsZero() bool            { return t.name == "" && t.invoke == nil }

// SameRegistration reports whether both values come from the same NewTool
// call. Two tools with equal names from different registrations differ.
func (t Tool) SameRegistration(other Tool) bool {
	return t.serial == other.serial
}

// Invoke runs the tool with args. A nil args map is passed as empty.
func (t Tool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if t.invoke == nil {
		return nil, fmt.Errorf("tool %q has no implementation", t.name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.invoke(ctx, args)
}

// Summary returns the serialisable view of the tool.
func (t Tool) Summary() ToolSummary {
	return ToolSummary{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.params,
		Kind:        t.kind,
		Provider:    t.provider,
	}
}
