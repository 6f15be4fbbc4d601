// Package telemetry records tool invocations, provider lifecycle and health
// checks into OpenTelemetry.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InvokeObservation describes one finished tool invocation.
type InvokeObservation struct {
	Tool     string
	Provider string
	Kind     string
	Start    time.Time
	Duration time.Duration
	Success  bool

	// ErrorKind is a short classifier such as "timeout" or "crashed".
	ErrorKind string
}

// LifecycleObservation describes a provider add, remove or shutdown.
type LifecycleObservation struct {
	Provider string
	Kind     string
	Action   string
	Duration time.Duration
	Success  bool
	Tools    int
}

// HealthObservation describes one liveness probe.
type HealthObservation struct {
	Provider string
	Kind     string
	Healthy  bool
	Duration time.Duration
}

// Observer receives telemetry signals. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveInvoke(ctx context.Context, o InvokeObservation)
	ObserveLifecycle(ctx context.Context, o LifecycleObservation)
	ObserveHealth(ctx context.Context, o HealthObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveInvoke(context.Context, InvokeObservation)       {}
func (noopObserver) ObserveLifecycle(context.Context, LifecycleObservation) {}
func (noopObserver) ObserveHealth(context.Context, HealthObservation)       {}

// Noop returns an observer that discards everything.
func Noop() Observer { return noopObserver{} }

// ToolObserver records signals into OpenTelemetry instruments.
type ToolObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	latency     metric.Float64Histogram
	lifecycle   metric.Int64Counter
	health      metric.Int64Counter
	providers   metric.Int64UpDownCounter
}

// NewToolObserver creates an observer bound to the provided meter/tracer.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	invocations, err := meter.Int64Counter(
		"toolhub.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"toolhub.tool.latency",
		metric.WithDescription("Tool invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	lifecycle, err := meter.Int64Counter(
		"toolhub.provider.lifecycle",
		metric.WithDescription("Number of provider add, remove and shutdown operations"),
	)
	if err != nil {
		return nil, err
	}
	health, err := meter.Int64Counter(
		"toolhub.provider.health.checks",
		metric.WithDescription("Number of provider liveness probes"),
	)
	if err != nil {
		return nil, err
	}
	providers, err := meter.Int64UpDownCounter(
		"toolhub.provider.live",
		metric.WithDescription("Number of live providers"),
	)
	if err != nil {
		return nil, err
	}

	return &ToolObserver{
		tracer:      tracer,
		invocations: invocations,
		latency:     latency,
		lifecycle:   lifecycle,
		health:      health,
		providers:   providers,
	}, nil
}

// ObserveInvoke records one invocation result.
func (o *ToolObserver) ObserveInvoke(ctx context.Context, obs InvokeObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", obs.Tool),
		attribute.String("provider", obs.Provider),
		attribute.String("kind", obs.Kind),
		attribute.Bool("success", obs.Success),
	}
	if obs.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", obs.ErrorKind))
	}

	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, obs.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	start := obs.Start
	if start.IsZero() {
		start = time.Now().Add(-obs.Duration)
	}
	_, span := o.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(attrs...), trace.WithTimestamp(start))
	if obs.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, obs.ErrorKind)
	}
	span.End(trace.WithTimestamp(start.Add(obs.Duration)))
}

// ObserveLifecycle records a provider add, remove or shutdown.
func (o *ToolObserver) ObserveLifecycle(ctx context.Context, obs LifecycleObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider", obs.Provider),
		attribute.String("kind", obs.Kind),
		attribute.String("action", obs.Action),
		attribute.Bool("success", obs.Success),
	}
	o.lifecycle.Add(ctx, 1, metric.WithAttributes(attrs...))

	if obs.Success {
		switch obs.Action {
		case "add":
			o.providers.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", obs.Kind)))
		case "remove", "shutdown":
			o.providers.Add(ctx, -1, metric.WithAttributes(attribute.String("kind", obs.Kind)))
		}
	}

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "provider."+obs.Action, trace.WithAttributes(append(attrs, attribute.Int("tools", obs.Tools))...))
	if obs.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, obs.Action+" failed")
	}
	span.End()
}

// ObserveHealth records one liveness probe.
func (o *ToolObserver) ObserveHealth(ctx context.Context, obs HealthObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider", obs.Provider),
		attribute.String("kind", obs.Kind),
		attribute.Bool("healthy", obs.Healthy),
	}
	o.health.Add(ctx, 1, metric.WithAttributes(attrs...))
}

var _ Observer = (*ToolObserver)(nil)
