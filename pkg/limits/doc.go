// Package limits implements per-key admission control for the gateway.
//
// # Overview
//
// Every inference request passes through Registry.Admit before any provider
// work happens. Admission evaluates three dimensions in a fixed order —
// rolling request/token windows, burst bucket, concurrency cap — and returns
// a Decision plus a release function. The release function frees the
// concurrency slot and records actual token usage; callers must invoke it on
// every exit path, including failures.
//
// # Degraded Mode
//
// Per-key configurations come from a ConfigProvider. When the provider
// cannot supply a config for a key, the registry applies a conservative
// built-in default and logs a warning rather than failing open or closed.
//
// # State Lifecycle
//
// Limiter state lives in memory only and is sharded by key to avoid a global
// lock. Keys idle past the configured timeout are pruned by a background
// sweep; a restart resets all counters, which briefly admits more than the
// steady-state rate and is accepted.
package limits
