// Package dependency wires core toolhub services using go.uber.org/dig.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/dig"

	"github.com/crystaldolphin/toolhub/internal/bus"
	"github.com/crystaldolphin/toolhub/internal/config"
	"github.com/crystaldolphin/toolhub/internal/dynamic"
	"github.com/crystaldolphin/toolhub/internal/gateway"
	"github.com/crystaldolphin/toolhub/internal/heartbeat"
	"github.com/crystaldolphin/toolhub/internal/hub"
	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/telemetry"
)

// ServiceContainer holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type ServiceContainer struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Provider
	events    *bus.EventBus
	store     *hub.ProviderStore
	heartbeat *heartbeat.Service
	gateway   *gateway.Server
}

func (c *ServiceContainer) Config() *config.Config         { return c.cfg }
func (c *ServiceContainer) Logger() *slog.Logger           { return c.logger }
func (c *ServiceContainer) Telemetry() *telemetry.Provider { return c.telemetry }
func (c *ServiceContainer) EventBus() *bus.EventBus        { return c.events }
func (c *ServiceContainer) Store() *hub.ProviderStore      { return c.store }
func (c *ServiceContainer) Heartbeat() *heartbeat.Service  { return c.heartbeat }
func (c *ServiceContainer) Gateway() *gateway.Server       { return c.gateway }

// New builds and wires all core services from cfg. Nothing is started.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ServiceContainer, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() *slog.Logger { return logger }); err != nil {
		return nil, err
	}
	if err := d.Provide(func(cfg *config.Config, logger *slog.Logger) (*telemetry.Provider, error) {
		return newTelemetry(ctx, cfg, logger)
	}); err != nil {
		return nil, err
	}
	if err := d.Provide(newEventBus); err != nil {
		return nil, err
	}
	if err := d.Provide(newAdapterFactory); err != nil {
		return nil, err
	}
	if err := d.Provide(newCompiler); err != nil {
		return nil, err
	}
	if err := d.Provide(newProviderStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newHeartbeat); err != nil {
		return nil, err
	}
	if err := d.Provide(newGateway); err != nil {
		return nil, err
	}

	var result *ServiceContainer
	err := d.Invoke(func(
		tp *telemetry.Provider,
		events *bus.EventBus,
		store *hub.ProviderStore,
		hb *heartbeat.Service,
		gw *gateway.Server,
	) {
		result = &ServiceContainer{
			cfg:       cfg,
			logger:    logger,
			telemetry: tp,
			events:    events,
			store:     store,
			heartbeat: hb,
			gateway:   gw,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", dig.RootCause(err))
	}
	return result, nil
}

// Boot loads the configured dynamic tools and providers and installs the
// tool creator when enabled. Individual failures are logged and returned
// joined; everything that could start stays started.
func (c *ServiceContainer) Boot(ctx context.Context) error {
	var errs []error

	dyn := make([]hub.DynamicToolDef, 0, len(c.cfg.DynamicTools))
	for _, d := range c.cfg.DynamicTools {
		params, err := d.ParsedParameters()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dyn = append(dyn, hub.DynamicToolDef{Name: d.Name, Description: d.Description, Parameters: params, Code: d.Code})
	}
	if err := c.store.LoadDynamicTools(dyn); err != nil {
		errs = append(errs, err)
	}

	if c.cfg.ToolCreator {
		c.store.EnableToolCreator()
	}

	defs := make([]hub.ProviderDef, 0, len(c.cfg.Providers))
	for _, p := range c.cfg.Providers {
		pc, err := p.Provider()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, hub.ProviderDef{Name: p.Name, Config: pc})
	}
	if err := c.store.LoadProviders(ctx, defs); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Warn("boot finished with errors", "err", err)
	}
	c.logger.Info("toolhub ready", "providers", len(c.store.ListProviders()), "tools", len(c.store.ListTools()))
	return err
}

// Shutdown stops every provider and flushes telemetry.
func (c *ServiceContainer) Shutdown(ctx context.Context) error {
	c.store.ShutdownAll(ctx)
	c.events.Close()
	return c.telemetry.Shutdown(ctx)
}

func newTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*telemetry.Provider, error) {
	return telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	}, logger)
}

func newEventBus(logger *slog.Logger) *bus.EventBus {
	return bus.NewEventBus(bus.DefaultBufferSize, logger)
}

func newAdapterFactory(cfg *config.Config, logger *slog.Logger) hub.AdapterFactory {
	return providers.NewFactory(providers.Params{
		Logger:           logger,
		HandshakeTimeout: cfg.Timeouts.Handshake,
		HealthTimeout:    cfg.Timeouts.HealthCheck,
		CallTimeout:      cfg.Timeouts.Invoke,
	})
}

func newCompiler(cfg *config.Config, logger *slog.Logger) hub.ToolCompiler {
	return dynamic.NewCompiler(dynamic.Options{
		Timeout:       cfg.Timeouts.DynamicExec,
		MaxConcurrent: cfg.Dynamic.MaxConcurrent,
		MaxHeapGrowth: uint64(cfg.Dynamic.MaxHeapMB) << 20,
		Logger:        logger,
	})
}

func newProviderStore(
	cfg *config.Config,
	logger *slog.Logger,
	factory hub.AdapterFactory,
	compiler hub.ToolCompiler,
	events *bus.EventBus,
	tp *telemetry.Provider,
) *hub.ProviderStore {
	return hub.NewProviderStore(hub.Options{
		Factory:         factory,
		Compiler:        compiler,
		Events:          events,
		Observer:        tp.Observer(),
		Logger:          logger,
		InvokeTimeout:   cfg.Timeouts.Invoke,
		ShutdownTimeout: cfg.Timeouts.Shutdown,
	})
}

func newHeartbeat(cfg *config.Config, store *hub.ProviderStore, logger *slog.Logger) (*heartbeat.Service, error) {
	return heartbeat.NewService(store, cfg.Heartbeat.Schedule, logger)
}

func newGateway(cfg *config.Config, store *hub.ProviderStore, tp *telemetry.Provider, logger *slog.Logger) *gateway.Server {
	return gateway.NewServer(store, gateway.Options{
		Addr:               cfg.Server.Addr(),
		Metrics:            tp,
		DockerExtensionURL: cfg.Server.DockerExtensionURL,
		DockerLocalURL:     cfg.Server.DockerLocalURL,
		Logger:             logger,
	})
}
