// Package telemetry provides observability for Meridian.
//
// # Components
//
//   - logging: structured logging via log/slog (json or text)
//   - metrics: Prometheus collectors for every core component
//   - tracing: OpenTelemetry spans with an optional OTLP/gRPC exporter
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging)
//	slog.SetDefault(logger)
//
//	registry := prometheus.NewRegistry()
//	routingMetrics := metrics.NewRoutingMetrics(registry)
//
//	tp, err := tracing.Init(ctx, cfg.Telemetry.Tracing)
//
// Every metrics constructor accepts a nil registry and returns unregistered
// collectors, so components never need nil checks around instrumentation.
package telemetry
