package extensions

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	mvi "github.com/pumped-fn/pumped-mvi"
)

// TracingExtension records a span for every dispatch, broadcast and
// reduction, plus OpenTelemetry counters for operations and failures.
type TracingExtension struct {
	mvi.BaseExtension

	tracer trace.Tracer

	operations     metric.Int64Counter
	failures       metric.Int64Counter
	reduceDuration metric.Float64Histogram
}

// TracingOption is a modifier for the tracing extension
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	name           string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(o *tracingOptions) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider uses mp instead of the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) TracingOption {
	return func(o *tracingOptions) {
		o.meterProvider = mp
	}
}

// WithInstrumentationName sets the tracer and meter name.
func WithInstrumentationName(name string) TracingOption {
	return func(o *tracingOptions) {
		o.name = name
	}
}

// NewTracingExtension creates the extension and its instruments.
func NewTracingExtension(opts ...TracingOption) (*TracingExtension, error) {
	cfg := tracingOptions{
		name:           "github.com/pumped-fn/pumped-mvi",
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	meter := cfg.meterProvider.Meter(cfg.name)

	operations, err := meter.Int64Counter(
		"mvi_operations_total",
		metric.WithDescription("Total dispatch, broadcast and reduce operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operations counter: %w", err)
	}

	failures, err := meter.Int64Counter(
		"mvi_failures_total",
		metric.WithDescription("Total feature, reduce and cleanup failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	reduceDuration, err := meter.Float64Histogram(
		"mvi_reduce_duration_seconds",
		metric.WithDescription("Duration of reductions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reduce histogram: %w", err)
	}

	return &TracingExtension{
		BaseExtension:  mvi.NewBaseExtension("tracing"),
		tracer:         cfg.tracerProvider.Tracer(cfg.name),
		operations:     operations,
		failures:       failures,
		reduceDuration: reduceDuration,
	}, nil
}

// Order places tracing outside the other extensions.
func (e *TracingExtension) Order() int {
	return 10
}

func (e *TracingExtension) Wrap(ctx context.Context, next func() (any, error), op *mvi.Operation) (any, error) {
	attrs := []attribute.KeyValue{
		attribute.String("mvi.op", string(op.Kind)),
	}
	if op.Container.Name != "" {
		attrs = append(attrs,
			attribute.String("mvi.container", op.Container.Name),
			attribute.String("mvi.kind", op.Container.Kind.String()),
		)
	}
	if op.Intention != nil {
		attrs = append(attrs, attribute.String("mvi.intention", fmt.Sprintf("%T", op.Intention)))
	}
	if op.Outcome != nil {
		attrs = append(attrs, attribute.String("mvi.outcome", fmt.Sprintf("%T", op.Outcome)))
	}

	ctx, span := e.tracer.Start(ctx, "mvi."+string(op.Kind), trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	result, err := next()

	if op.Kind == mvi.OpReduce {
		e.reduceDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("container", op.Container.Name)))
	}
	e.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", string(op.Kind)),
		attribute.Bool("success", err == nil),
	))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (e *TracingExtension) OnFeatureError(container mvi.ContainerInfo, err *mvi.FeatureError) {
	e.failures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("container", container.Name),
		attribute.String("source", "feature"),
		attribute.String("feature", err.Feature),
	))
}

func (e *TracingExtension) OnReduceError(container mvi.ContainerInfo, err *mvi.ReduceError) {
	e.failures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("container", container.Name),
		attribute.String("source", "reduce"),
	))
}

func (e *TracingExtension) OnCleanupError(err *mvi.CleanupError) {
	e.failures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("container", err.Owner),
		attribute.String("source", "cleanup"),
	))
}
