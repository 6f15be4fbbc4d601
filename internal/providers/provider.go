// Package providers defines the contract every tool provider transport
// satisfies and builds adapters from provider configs.
package providers

import (
	"context"

	"github.com/crystaldolphin/toolhub/internal/bridge"
	"github.com/crystaldolphin/toolhub/internal/mcp"
	"github.com/crystaldolphin/toolhub/internal/schema"
)

// Adapter is one provider: constructed, bootstrapped once, then live until
// Shutdown. Tools returns the list cached at bootstrap.
type Adapter interface {
	Name() string
	Kind() schema.ProviderKind
	// Endpoint is a human-readable location (command line or base URL).
	Endpoint() string
	Bootstrap(ctx context.Context) error
	Tools() []schema.Tool
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
	Ping(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Alive() bool
}

var (
	_ Adapter = (*mcp.Adapter)(nil)
	_ Adapter = (*bridge.Adapter)(nil)
)
