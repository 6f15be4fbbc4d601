package tools

import "github.com/crystaldolphin/toolhub/internal/schema"

// RegistryBuilder accumulates tools during a rebuild. Adding a name that is
// already present replaces the value but keeps the first position.
// Call Build() to produce an immutable Registry.
type RegistryBuilder struct {
	order []string
	tools map[string]schema.Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{tools: make(map[string]schema.Tool)}
}

// WithTool adds a tool and returns the builder, enabling chaining.
func (b *RegistryBuilder) WithTool(tool schema.Tool) *RegistryBuilder {
	if _, exists := b.tools[tool.Name()]; !exists {
		b.order = append(b.order, tool.Name())
	}
	b.tools[tool.Name()] = tool

	return b
}

// WithTools adds tools in order.
func (b *RegistryBuilder) WithTools(tools []schema.Tool) *RegistryBuilder {
	for _, t := range tools {
		b.WithTool(t)
	}
	return b
}

// Build produces an immutable Registry from the accumulated tools.
func (b *RegistryBuilder) Build() *Registry {
	order := make([]string, len(b.order))
	copy(order, b.order)
	tools := make(map[string]schema.Tool, len(b.tools))
	for k, v := range b.tools {
		tools[k] = v
	}
	return &Registry{order: order, tools: tools}
}

// Rebuild derives a registry from scratch: every provider's tools in
// provider order, then the dynamic tools, which win every collision.
func Rebuild(providerTools [][]schema.Tool, dynamic []schema.Tool) *Registry {
	b := NewRegistryBuilder()
	for _, list := range providerTools {
		b.WithTools(list)
	}
	return b.WithTools(dynamic).Build()
}
