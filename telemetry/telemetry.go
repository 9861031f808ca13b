// Package telemetry wires the substrate's observability hooks:
// OpenTelemetry metric instruments for the owner's storage engine, the
// arbitration protocol, and the sync push/pull boundary, plus the
// *slog.Logger every component accepts. Exporters are optional and
// telemetry degrades to no-ops when none are configured.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the telemetry stack. TraceExporter and MetricReader
// are pluggable (OTLP, stdout, a test-only in-memory exporter); leaving
// either nil disables that half without an error.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	TraceExporter sdktrace.SpanExporter
	MetricReader  sdkmetric.Reader

	Logger *slog.Logger
}

// Telemetry bundles the tracer/meter providers, the instrument set, and
// the logger every eventcore component is constructed with.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Metrics        *Metrics
	Logger         *slog.Logger

	shutdown func(context.Context) error
}

// Init builds a Telemetry from cfg, degrading to no-op providers when an
// exporter/reader is not supplied.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	t := &Telemetry{Logger: cfg.Logger}
	var shutdowns []func(context.Context) error

	if cfg.TraceExporter != nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(cfg.TraceExporter),
		)
		t.TracerProvider = tp
		shutdowns = append(shutdowns, tp.Shutdown)
		otel.SetTracerProvider(tp)
	} else {
		t.TracerProvider = trace.NewNoopTracerProvider()
	}

	if cfg.MetricReader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(cfg.MetricReader),
		)
		metrics, err := NewMetrics(mp.Meter("eventcore"))
		if err != nil {
			return nil, fmt.Errorf("telemetry: build instruments: %w", err)
		}
		t.MeterProvider = mp
		t.Metrics = metrics
		shutdowns = append(shutdowns, mp.Shutdown)
		otel.SetMeterProvider(mp)
	} else {
		mp := sdkmetric.NewMeterProvider()
		metrics, err := NewMetrics(mp.Meter("eventcore"))
		if err != nil {
			return nil, fmt.Errorf("telemetry: build no-op instruments: %w", err)
		}
		t.MeterProvider = mp
		t.Metrics = metrics
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	t.shutdown = func(ctx context.Context) error {
		var firstErr error
		for _, fn := range shutdowns {
			if err := fn(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return t, nil
}

// Shutdown drains exporters. Safe to call on a Telemetry built with no
// exporters configured.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// Tracer returns a named tracer from the configured provider.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return t.TracerProvider.Tracer(name)
}

// Noop returns a Telemetry with no-op providers and slog.Default(),
// suitable as every component's zero-configuration default.
func Noop() *Telemetry {
	t, err := Init(context.Background(), Config{ServiceName: "eventcore"})
	if err != nil {
		// Building no-op providers never fails in practice; a panic here
		// would indicate a broken otel SDK import, not a runtime fault.
		panic(err)
	}
	return t
}
