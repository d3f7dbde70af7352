// Package routing dispatches inference requests across a canonical model's
// provider candidates with ordered failover.
//
// A request resolves through the model catalog, then walks the candidate
// list in order. Each candidate is gated by its circuit breaker; a
// retryable failure (transport error, 5xx, 429, 402) records a breaker
// failure and moves to the next candidate, while a permanent failure stops
// the walk immediately. When every candidate's breaker is open, the router
// can make a single emergency dispatch through the first candidate so the
// model never goes fully dark.
//
// Successful responses are billed post-hoc against the caller's credit
// account using the catalog's resolved pricing. A debit that fails after
// the response was produced never takes the response away from the caller;
// it is logged and counted as uncollected instead.
//
// Streaming requests fail over only until the provider returns a stream.
// Once the first bytes are flowing the response is committed to that
// provider: a mid-stream error interrupts the request, and a clean end of
// stream records success and bills from the final usage chunk.
package routing
