package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crystaldolphin/toolhub/internal/bus"
	"github.com/crystaldolphin/toolhub/internal/dynamic"
	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/schema"
)

// fakeAdapter is an in-memory provider. Its tool names come from the
// provider config's Args.
type fakeAdapter struct {
	name         string
	toolNames    []string
	bootstrapErr error
	shutdownErr  error
	block        chan struct{}

	tools     []schema.Tool
	dead      atomic.Bool
	shutdowns atomic.Int32
	calls     atomic.Int32
}

func (f *fakeAdapter) Name() string              { return f.name }
func (f *fakeAdapter) Kind() schema.ProviderKind { return schema.KindStdio }
func (f *fakeAdapter) Endpoint() string          { return "fake://" + f.name }
func (f *fakeAdapter) Tools() []schema.Tool      { return f.tools }
func (f *fakeAdapter) Alive() bool               { return !f.dead.Load() }

func (f *fakeAdapter) Bootstrap(ctx context.Context) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.bootstrapErr != nil {
		return f.bootstrapErr
	}
	for _, n := range f.toolNames {
		name := n
		f.tools = append(f.tools, schema.NewTool(name, "fake "+name, nil, schema.KindStdio, f.name,
			func(ctx context.Context, args map[string]any) (any, error) {
				return f.CallTool(ctx, name, args)
			}))
	}
	return nil
}

func (f *fakeAdapter) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	f.calls.Add(1)
	if f.dead.Load() {
		return nil, fmt.Errorf("%w: %s", schema.ErrProviderCrashed, f.name)
	}
	if name == "slow" {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", schema.ErrCallTimeout, ctx.Err())
	}
	return fmt.Sprintf("%s/%s", f.name, name), nil
}

func (f *fakeAdapter) Ping(context.Context) error {
	if f.dead.Load() {
		return schema.ErrProviderCrashed
	}
	return nil
}

func (f *fakeAdapter) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.dead.Store(true)
	return f.shutdownErr
}

// fakeFactory hands out fakeAdapters and remembers them by name.
type fakeFactory struct {
	mu       sync.Mutex
	built    map[string]*fakeAdapter
	failing  map[string]error
	blocking map[string]chan struct{}
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		built:    make(map[string]*fakeAdapter),
		failing:  make(map[string]error),
		blocking: make(map[string]chan struct{}),
	}
}

func (f *fakeFactory) New(name string, cfg providers.Config) (providers.Adapter, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("%w: no command", schema.ErrInvalidConfig)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &fakeAdapter{
		name:         name,
		toolNames:    cfg.Args,
		bootstrapErr: f.failing[name],
		block:        f.blocking[name],
	}
	f.built[name] = a
	return a, nil
}

func (f *fakeFactory) adapter(name string) *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[name]
}

func fakeConfig(tools ...string) providers.Config {
	return providers.Config{Command: "fake", Args: tools}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*ProviderStore, *fakeFactory) {
	t.Helper()
	f := newFakeFactory()
	s := NewProviderStore(Options{
		Factory:  f,
		Compiler: dynamic.NewCompiler(dynamic.Options{Timeout: time.Second}),
		Events:   bus.NewEventBus(256, testLogger()),
		Logger:   testLogger(),
	})
	t.Cleanup(func() { s.ShutdownAll(context.Background()) })
	return s, f
}

// drain collects whatever events are already buffered.
func drain(ch <-chan bus.Event) []bus.Event {
	var out []bus.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func eventStrings(evs []bus.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, string(ev.Type)+":"+ev.Subject())
	}
	return out
}

var errBoom = errors.New("boom")
