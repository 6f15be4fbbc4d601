package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/crystaldolphin/toolhub"

// Config selects what telemetry is produced.
type Config struct {
	Enabled     bool
	ServiceName string

	// OTLPEndpoint is an OTLP/HTTP traces URL; empty keeps spans in-process.
	OTLPEndpoint string
}

// Provider owns the meter and tracer providers for the process.
type Provider struct {
	meter    metric.Meter
	tracer   trace.Tracer
	reader   *sdkmetric.ManualReader
	observer Observer
	shutdown []func(context.Context) error
}

// Setup builds the providers described by cfg. A disabled config yields
// no-op instruments and a Noop observer.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return &Provider{
			meter:    metricnoop.NewMeterProvider().Meter(instrumentationName),
			tracer:   tracenoop.NewTracerProvider().Tracer(instrumentationName),
			observer: Noop(),
		}, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = "toolhub"
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	p := &Provider{reader: sdkmetric.NewManualReader()}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(p.reader), sdkmetric.WithResource(res))
	p.shutdown = append(p.shutdown, mp.Shutdown)
	p.meter = mp.Meter(instrumentationName)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.OTLPEndpoint != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
		logger.Info("telemetry: exporting traces", "endpoint", cfg.OTLPEndpoint)
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	p.shutdown = append(p.shutdown, tp.Shutdown)
	p.tracer = tp.Tracer(instrumentationName)

	obs, err := NewToolObserver(p.meter, p.tracer)
	if err != nil {
		return nil, fmt.Errorf("telemetry instruments: %w", err)
	}
	p.observer = obs
	return p, nil
}

func (p *Provider) Observer() Observer   { return p.observer }
func (p *Provider) Meter() metric.Meter  { return p.meter }
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Enabled reports whether metrics are being collected.
func (p *Provider) Enabled() bool { return p.reader != nil }

// Collect returns the current metric values.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p.reader == nil {
		return rm, errors.New("telemetry disabled")
	}
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		if err := p.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
