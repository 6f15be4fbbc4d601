package tools

import (
	"github.com/crystaldolphin/toolhub/internal/schema"
)

// Registry is an immutable, ordered snapshot of every invokable tool.
// Build one with RegistryBuilder; never modify it after Build.
type Registry struct {
	order []string
	tools map[string]schema.Tool
}

// EmptyRegistry returns a registry without tools.
func EmptyRegistry() *Registry {
	return &Registry{tools: map[string]schema.Tool{}}
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (schema.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Len() int { return len(r.order) }

// Names returns tool names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tools returns the tools in registry order.
func (r *Registry) Tools() []schema.Tool {
	out := make([]schema.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Summaries returns the serialisable form of every tool, in order.
func (r *Registry) Summaries() []schema.ToolSummary {
	out := make([]schema.ToolSummary, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Summary())
	}
	return out
}

// AllTools returns a mutable copy for callers that assemble per-request
// tool sets.
func (r *Registry) AllTools() *ToolList {
	return NewToolList(r.Tools()...)
}

// Delta is the difference between two registry snapshots. Replaced holds
// names present in both whose registration changed.
type Delta struct {
	Added    []schema.Tool
	Replaced []schema.Tool
	Removed  []schema.Tool
}

func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Replaced) == 0 && len(d.Removed) == 0
}

// Diff compares old and next. Results follow the order of the snapshot
// each tool comes from.
func Diff(old, next *Registry) Delta {
	if old == nil {
		old = EmptyRegistry()
	}
	if next == nil {
		next = EmptyRegistry()
	}

	var d Delta
	for _, name := range old.order {
		if _, ok := next.tools[name]; !ok {
			d.Removed = append(d.Removed, old.tools[name])
		}
	}
	for _, name := range next.order {
		cur := next.tools[name]
		prev, ok := old.tools[name]
		switch {
		case !ok:
			d.Added = append(d.Added, cur)
		case !prev.SameRegistration(cur):
			d.Replaced = append(d.Replaced, cur)
		}
	}
	return d
}
