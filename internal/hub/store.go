// Package hub owns the live providers and the dynamic tools, derives the
// tool registry from them and publishes every change.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/toolhub/internal/bus"
	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/schema"
	"github.com/crystaldolphin/toolhub/internal/telemetry"
	"github.com/crystaldolphin/toolhub/internal/tools"
)

// DefaultInvokeTimeout applies to invocations whose context has no deadline.
const DefaultInvokeTimeout = 60 * time.Second

var errStoreClosed = errors.New("store is shut down")

// AdapterFactory builds unbootstrapped adapters.
type AdapterFactory interface {
	New(name string, cfg providers.Config) (providers.Adapter, error)
}

// ToolCompiler turns code into dynamic tools.
type ToolCompiler interface {
	Compile(name, description string, params *schema.Parameters, code string) (schema.Tool, error)
}

// Options configure a ProviderStore.
type Options struct {
	Factory  AdapterFactory
	Compiler ToolCompiler
	Events   *bus.EventBus
	Observer telemetry.Observer
	Logger   *slog.Logger

	InvokeTimeout   time.Duration
	ShutdownTimeout time.Duration
}

// AddResult reports a successfully added provider.
type AddResult struct {
	Name      string              `json:"name"`
	Kind      schema.ProviderKind `json:"kind"`
	ToolCount int                 `json:"toolCount"`
}

// ProviderStore is the single writer of registry state. Mutations are
// serialised by mu; bootstrap and shutdown I/O happen outside it. Readers
// only take snapMu to fetch the current immutable registry.
type ProviderStore struct {
	factory  AdapterFactory
	compiler ToolCompiler
	events   *bus.EventBus
	observer telemetry.Observer
	logger   *slog.Logger

	invokeTimeout   time.Duration
	shutdownTimeout time.Duration

	mu       sync.Mutex
	adapters []providers.Adapter
	starting map[string]struct{}
	dynamic  []schema.Tool
	closed   bool

	snapMu   sync.RWMutex
	registry *tools.Registry
}

func NewProviderStore(opts Options) *ProviderStore {
	s := &ProviderStore{
		factory:         opts.Factory,
		compiler:        opts.Compiler,
		events:          opts.Events,
		observer:        opts.Observer,
		logger:          opts.Logger,
		invokeTimeout:   opts.InvokeTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		starting:        make(map[string]struct{}),
		registry:        tools.EmptyRegistry(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "store")
	if s.events == nil {
		s.events = bus.NewEventBus(0, s.logger)
	}
	if s.observer == nil {
		s.observer = telemetry.Noop()
	}
	if s.invokeTimeout <= 0 {
		s.invokeTimeout = DefaultInvokeTimeout
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 10 * time.Second
	}
	return s
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

// AddProvider builds and bootstraps a provider and adds its tools. A name
// already live or still bootstrapping is rejected with
// schema.ErrDuplicateProvider. A failed bootstrap leaves no trace. Once
// ShutdownAll has run, every add fails and a provider caught bootstrapping
// is shut down instead of added.
func (s *ProviderStore) AddProvider(ctx context.Context, name string, cfg providers.Config) (AddResult, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return AddResult{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return AddResult{}, fmt.Errorf("%w: %q: %v", schema.ErrProviderUnavailable, name, errStoreClosed)
	}
	if s.hasProviderLocked(name) {
		s.mu.Unlock()
		return AddResult{}, fmt.Errorf("%w: %q", schema.ErrDuplicateProvider, name)
	}
	s.starting[name] = struct{}{}
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.starting, name)
		s.mu.Unlock()
	}

	start := time.Now()
	adapter, err := s.factory.New(name, cfg)
	if err != nil {
		release()
		return AddResult{}, err
	}

	if err := adapter.Bootstrap(ctx); err != nil {
		release()
		s.discard(adapter)
		s.observer.ObserveLifecycle(ctx, telemetry.LifecycleObservation{
			Provider: name, Kind: string(adapter.Kind()), Action: "add", Duration: time.Since(start),
		})
		s.logger.Error("provider bootstrap failed", "provider", name, "kind", adapter.Kind(), "err", err)
		if !errors.Is(err, schema.ErrProviderUnavailable) && !errors.Is(err, schema.ErrInvalidConfig) {
			err = fmt.Errorf("%w: %q: %v", schema.ErrProviderUnavailable, name, err)
		}
		return AddResult{}, err
	}

	s.mu.Lock()
	delete(s.starting, name)
	if s.closed {
		s.mu.Unlock()
		s.discard(adapter)
		s.logger.Warn("provider started after shutdown, discarded", "provider", name)
		return AddResult{}, fmt.Errorf("%w: %q: %v", schema.ErrProviderUnavailable, name, errStoreClosed)
	}
	s.adapters = append(s.adapters, adapter)
	s.events.Publish(bus.NewProviderEvent(bus.ProviderAdded, summarize(adapter)))
	s.rebuildLocked()
	s.mu.Unlock()

	result := AddResult{Name: name, Kind: adapter.Kind(), ToolCount: len(adapter.Tools())}
	s.observer.ObserveLifecycle(ctx, telemetry.LifecycleObservation{
		Provider: name, Kind: string(result.Kind), Action: "add", Duration: time.Since(start), Success: true, Tools: result.ToolCount,
	})
	s.logger.Info("provider added", "provider", name, "kind", result.Kind, "tools", result.ToolCount)
	return result, nil
}

// RemoveProvider shuts a provider down and drops its tools. Unknown names
// are a no-op. Shutdown errors are logged, never returned.
func (s *ProviderStore) RemoveProvider(ctx context.Context, name string) {
	s.mu.Lock()
	idx := s.indexLocked(name)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	adapter := s.adapters[idx]
	s.adapters = append(s.adapters[:idx:idx], s.adapters[idx+1:]...)
	s.events.Publish(bus.NewProviderEvent(bus.ProviderRemoved, summarize(adapter)))
	s.rebuildLocked()
	s.mu.Unlock()

	start := time.Now()
	err := s.shutdownAdapter(ctx, adapter)
	s.observer.ObserveLifecycle(ctx, telemetry.LifecycleObservation{
		Provider: name, Kind: string(adapter.Kind()), Action: "remove", Duration: time.Since(start), Success: true,
	})
	s.logger.Info("provider removed", "provider", name, "shutdown_err", err)
}

// ShutdownAll stops every provider concurrently. Each failure is logged and
// isolated. Dynamic tools survive. The store accepts no providers afterwards.
func (s *ProviderStore) ShutdownAll(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	adapters := s.adapters
	s.adapters = nil
	for _, a := range adapters {
		s.events.Publish(bus.NewProviderEvent(bus.ProviderRemoved, summarize(a)))
	}
	s.rebuildLocked()
	s.mu.Unlock()

	var g errgroup.Group
	for _, a := range adapters {
		g.Go(func() error {
			start := time.Now()
			err := s.shutdownAdapter(ctx, a)
			s.observer.ObserveLifecycle(ctx, telemetry.LifecycleObservation{
				Provider: a.Name(), Kind: string(a.Kind()), Action: "shutdown", Duration: time.Since(start), Success: err == nil,
			})
			return nil
		})
	}
	_ = g.Wait()

	if len(adapters) > 0 {
		s.logger.Info("all providers shut down", "count", len(adapters))
	}
}

func (s *ProviderStore) shutdownAdapter(ctx context.Context, a providers.Adapter) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	err := a.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("provider shutdown failed", "provider", a.Name(), "err", err)
	}
	return err
}

// discard releases whatever a failed bootstrap left behind.
func (s *ProviderStore) discard(a providers.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		s.logger.Debug("discarding failed provider", "provider", a.Name(), "err", err)
	}
}

// ListProviders returns live providers in add order.
func (s *ProviderStore) ListProviders() []schema.ProviderSummary {
	s.mu.Lock()
	adapters := append([]providers.Adapter(nil), s.adapters...)
	s.mu.Unlock()

	out := make([]schema.ProviderSummary, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, summarize(a))
	}
	return out
}

// Provider returns the live adapter with the given name.
func (s *ProviderStore) Provider(name string) (providers.Adapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(name); idx >= 0 {
		return s.adapters[idx], true
	}
	return nil, false
}

// CheckHealth pings every live provider concurrently.
func (s *ProviderStore) CheckHealth(ctx context.Context) []schema.ProviderHealth {
	s.mu.Lock()
	adapters := append([]providers.Adapter(nil), s.adapters...)
	s.mu.Unlock()

	results := make([]schema.ProviderHealth, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			start := time.Now()
			h := schema.ProviderHealth{Name: a.Name(), Kind: a.Kind(), Healthy: true}
			switch {
			case !a.Alive():
				h.Healthy = false
				h.Error = "provider process has exited"
			default:
				if err := a.Ping(ctx); err != nil {
					h.Healthy = false
					h.Error = err.Error()
				}
			}
			h.Latency = time.Since(start)
			results[i] = h
			s.observer.ObserveHealth(ctx, telemetry.HealthObservation{
				Provider: h.Name, Kind: string(h.Kind), Healthy: h.Healthy, Duration: h.Latency,
			})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *ProviderStore) hasProviderLocked(name string) bool {
	if _, ok := s.starting[name]; ok {
		return true
	}
	return s.indexLocked(name) >= 0
}

func (s *ProviderStore) indexLocked(name string) int {
	for i, a := range s.adapters {
		if a.Name() == name {
			return i
		}
	}
	return -1
}

func summarize(a providers.Adapter) schema.ProviderSummary {
	ts := a.Tools()
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, t.Name())
	}
	return schema.ProviderSummary{
		Name:      a.Name(),
		Kind:      a.Kind(),
		Endpoint:  a.Endpoint(),
		ToolNames: names,
		Alive:     a.Alive(),
	}
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: provider name is required", schema.ErrInvalidConfig)
	}
	if strings.ContainsAny(name, "/ \t\n") {
		return fmt.Errorf("%w: provider name %q must not contain slashes or whitespace", schema.ErrInvalidConfig, name)
	}
	return nil
}
