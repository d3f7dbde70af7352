// Package breaker implements per-(provider, model) circuit breakers.
//
// # State Machine
//
// Each pair carries an independent three-state breaker:
//
//   - closed: requests flow; consecutive failures are counted
//   - open: requests are rejected until the cooldown elapses
//   - half_open: exactly one trial request probes the pair
//
// Closed trips to open at the failure threshold. After the cooldown, the
// next Acquire transitions to half_open and is admitted as the single trial;
// concurrent acquirers keep seeing open until the trial resolves. A trial
// success closes the breaker and resets the failure count; a trial failure
// reopens it with a fresh cooldown.
//
// # Failure Classification
//
// Only failures that indicate provider trouble count: timeouts, connection
// errors, 5xx, 429, and 402. Client-caused 4xx responses pass through
// without touching the count — a malformed request says nothing about the
// provider's health.
//
// # Emergency Fallback
//
// The registry only reports state. When every candidate for a model is open,
// the router dispatches to the first candidate anyway rather than hard-fail
// the model; that bypass lives in pkg/routing where the candidate list is
// known.
package breaker
