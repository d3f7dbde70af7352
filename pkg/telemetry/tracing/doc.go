// Package tracing configures OpenTelemetry tracing for the gateway.
//
// The router opens a span per routed request with a child event per dispatch
// attempt, which makes failover chains visible in a trace backend. Export is
// OTLP over gRPC and entirely optional; with tracing disabled the global
// no-op tracer provider stays in place and span calls cost almost nothing.
package tracing
