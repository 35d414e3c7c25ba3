package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider *sdktrace.TracerProvider
	ProbeCounter  metric.Int64Counter
	ProbeDuration metric.Int64Histogram
	RunCounter    metric.Int64Counter
}

func SetupObservability(ctx context.Context, cfg ObservabilityConfig) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "node-agent"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Info("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	meter := otel.Meter(serviceName)
	tracer := otel.Tracer(serviceName)
	probeCounter, _ := meter.Int64Counter("agent_probe_total")
	probeDuration, _ := meter.Int64Histogram("agent_probe_duration_ms")
	runCounter, _ := meter.Int64Counter("agent_run_total")
	return &Observability{
		Tracer:        tracer,
		Meter:         meter,
		traceProvider: tp,
		ProbeCounter:  probeCounter,
		ProbeDuration: probeDuration,
		RunCounter:    runCounter,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

func (o *Observability) MarkProbe(ctx context.Context, name string, passed bool) {
	if o == nil {
		return
	}
	outcome := "pass"
	if !passed {
		outcome = "fail"
	}
	o.ProbeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("probe", name),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) MarkRun(ctx context.Context, mode, status string) {
	if o == nil {
		return
	}
	o.RunCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
}

// StartProbe opens a span for one probe and returns a finish func that ends
// it and records the probe duration.
func (o *Observability) StartProbe(ctx context.Context, name string) (context.Context, func()) {
	if o == nil {
		return ctx, func() {}
	}
	start := time.Now()
	ctx, span := o.Tracer.Start(ctx, "probe "+name)
	return ctx, func() {
		span.End()
		o.ProbeDuration.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(
			attribute.String("probe", name),
		))
	}
}
