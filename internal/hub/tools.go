package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crystaldolphin/toolhub/internal/bus"
	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/schema"
	"github.com/crystaldolphin/toolhub/internal/telemetry"
	"github.com/crystaldolphin/toolhub/internal/tools"
)

// Registry returns the current snapshot. It is immutable and safe to keep.
func (s *ProviderStore) Registry() *tools.Registry {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.registry
}

// ListTools returns every invokable tool in registry order.
func (s *ProviderStore) ListTools() []schema.ToolSummary {
	return s.Registry().Summaries()
}

// Invoke runs a tool by name. Tool failures come back as result values;
// the returned error covers unknown tools, timeouts and crashed providers.
func (s *ProviderStore) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, ok := s.Registry().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownTool, name)
	}

	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.invokeTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := tool.Invoke(ctx, args)
	obs := telemetry.InvokeObservation{
		Tool:     tool.Name(),
		Provider: tool.Provider(),
		Kind:     string(tool.Kind()),
		Start:    start,
		Duration: time.Since(start),
		Success:  err == nil && !schema.IsFailure(result),
	}
	if err != nil {
		obs.ErrorKind = errorKind(err)
		s.logger.Warn("tool invocation failed", "tool", name, "provider", tool.Provider(), "err", err)
	}
	s.observer.ObserveInvoke(ctx, obs)
	return result, err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, schema.ErrCallTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, schema.ErrProviderCrashed):
		return "crashed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// AddDynamicTool compiles code into a tool and installs it. A dynamic tool
// with the same name is replaced in place.
func (s *ProviderStore) AddDynamicTool(name, description string, params *schema.Parameters, code string) (schema.Tool, error) {
	if s.compiler == nil {
		return schema.Tool{}, fmt.Errorf("%w: dynamic tools are not enabled", schema.ErrInvalidTool)
	}
	name = strings.TrimSpace(name)
	if name == tools.ToolCreatorName {
		return schema.Tool{}, fmt.Errorf("%w: %q is reserved", schema.ErrInvalidTool, name)
	}

	tool, err := s.compiler.Compile(name, description, params, code)
	if err != nil {
		return schema.Tool{}, err
	}

	s.mu.Lock()
	s.putDynamicLocked(tool)
	s.rebuildLocked()
	s.mu.Unlock()

	s.logger.Info("dynamic tool added", "tool", name)
	return tool, nil
}

// RemoveDynamicTool drops a dynamic tool. Unknown names are ignored.
func (s *ProviderStore) RemoveDynamicTool(name string) {
	if name == tools.ToolCreatorName {
		s.DisableToolCreator()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropDynamicLocked(name) {
		s.rebuildLocked()
		s.logger.Info("dynamic tool removed", "tool", name)
	}
}

// EnableToolCreator installs the tool-creator meta tool.
func (s *ProviderStore) EnableToolCreator() {
	creator := tools.NewToolCreator(s.AddDynamicTool)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dynamicIndexLocked(tools.ToolCreatorName) >= 0 {
		return
	}
	s.putDynamicLocked(creator)
	s.rebuildLocked()
	s.logger.Info("tool creator enabled")
}

// DisableToolCreator removes the tool-creator meta tool. Tools it created
// stay registered.
func (s *ProviderStore) DisableToolCreator() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropDynamicLocked(tools.ToolCreatorName) {
		s.rebuildLocked()
		s.logger.Info("tool creator disabled")
	}
}

// ToolCreatorEnabled reports whether the meta tool is installed.
func (s *ProviderStore) ToolCreatorEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dynamicIndexLocked(tools.ToolCreatorName) >= 0
}

// Subscribe returns a channel of registry events, closed when ctx ends.
func (s *ProviderStore) Subscribe(ctx context.Context) (<-chan bus.Event, string) {
	return s.events.Subscribe(ctx)
}

// Unsubscribe ends a subscription early.
func (s *ProviderStore) Unsubscribe(id string) {
	s.events.Unsubscribe(id)
}

func (s *ProviderStore) putDynamicLocked(tool schema.Tool) {
	if i := s.dynamicIndexLocked(tool.Name()); i >= 0 {
		s.dynamic[i] = tool
		return
	}
	s.dynamic = append(s.dynamic, tool)
}

func (s *ProviderStore) dropDynamicLocked(name string) bool {
	i := s.dynamicIndexLocked(name)
	if i < 0 {
		return false
	}
	s.dynamic = append(s.dynamic[:i:i], s.dynamic[i+1:]...)
	return true
}

func (s *ProviderStore) dynamicIndexLocked(name string) int {
	for i, t := range s.dynamic {
		if t.Name() == name {
			return i
		}
	}
	return -1
}

// rebuildLocked derives a fresh registry, swaps it in and publishes the
// tool deltas. Callers hold mu.
func (s *ProviderStore) rebuildLocked() {
	lists := make([][]schema.Tool, 0, len(s.adapters))
	for _, a := range s.adapters {
		lists = append(lists, a.Tools())
	}
	next := tools.Rebuild(lists, s.dynamic)

	s.snapMu.Lock()
	old := s.registry
	s.registry = next
	s.snapMu.Unlock()

	delta := tools.Diff(old, next)
	if delta.Empty() {
		return
	}
	s.logger.Debug("registry rebuilt", "tools", next.Len(),
		"added", len(delta.Added), "replaced", len(delta.Replaced), "removed", len(delta.Removed))
	for _, t := range delta.Removed {
		s.events.Publish(bus.NewToolEvent(bus.ToolRemoved, t.Summary()))
	}
	for _, t := range delta.Added {
		s.events.Publish(bus.NewToolEvent(bus.ToolAdded, t.Summary()))
	}
	for _, t := range delta.Replaced {
		s.events.Publish(bus.NewToolEvent(bus.ToolAdded, t.Summary()))
	}
}

// LoadDynamicTools installs configured dynamic tools. Each failure is
// reported and the rest still load.
func (s *ProviderStore) LoadDynamicTools(defs []DynamicToolDef) error {
	var errs []error
	for _, d := range defs {
		if _, err := s.AddDynamicTool(d.Name, d.Description, d.Parameters, d.Code); err != nil {
			errs = append(errs, fmt.Errorf("dynamic tool %q: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}

// DynamicToolDef is a dynamic tool definition loaded from config.
type DynamicToolDef struct {
	Name        string
	Description string
	Parameters  *schema.Parameters
	Code        string
}

// ProviderDef is a provider definition loaded from config.
type ProviderDef struct {
	Name   string
	Config providers.Config
}

// LoadProviders adds configured providers in order. Failures are logged and
// collected; the remaining providers still start.
func (s *ProviderStore) LoadProviders(ctx context.Context, defs []ProviderDef) error {
	var errs []error
	for _, d := range defs {
		if _, err := s.AddProvider(ctx, d.Name, d.Config); err != nil {
			errs = append(errs, fmt.Errorf("provider %q: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}
