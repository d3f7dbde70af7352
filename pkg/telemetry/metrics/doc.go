// Package metrics holds the Prometheus collectors shared by the gateway
// core: routing attempts, circuit breaker state, catalog data quality, and
// ledger accounting.
//
// Each component gets its own collector type registered against a caller
// supplied registry, so tests can use a private prometheus.NewRegistry() and
// never touch global state. The rate limiter carries its own collectors in
// pkg/limits because they are coupled to its key lifecycle.
package metrics
