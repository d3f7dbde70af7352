package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this module's tracer.
const tracerName = "meridian-hq/meridian"

// Config contains tracing configuration.
type Config struct {
	// Enabled turns span export on. When false, Init is a no-op and the
	// global no-op tracer provider remains active.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/gRPC collector endpoint (host:port).
	Endpoint string `yaml:"endpoint"`

	// SampleRatio is the head sampling ratio in [0, 1]. Zero disables
	// sampling entirely; parent decisions are always honored.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Init installs a tracer provider exporting to the configured OTLP
// endpoint and returns it for shutdown. Returns (nil, nil) when tracing is
// disabled.
//
// Example:
//
//	tp, err := tracing.Init(ctx, cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	if tp != nil {
//	    defer tp.Shutdown(context.Background())
//	}
func Init(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("meridian"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
