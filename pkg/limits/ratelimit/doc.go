// Package ratelimit provides the rate limiting primitives composed per key.
//
// # Overview
//
// Three strategies cover the three admission dimensions:
//
//   - Sliding Window: request and token counts over a rolling minute
//   - Token Bucket: burst smoothing with fractional refill
//   - Concurrent Limiter: semaphore over simultaneous in-flight requests
//
// A KeyLimiter composes all three and evaluates them in a fixed order on
// every admission: window requests, window tokens, burst bucket, concurrency.
// The first dimension that would be exceeded denies the request with a
// retry-after hint; a denial consumes nothing.
//
// # Sliding Window
//
// Both rolling counters use a circular buffer of 60 one-second buckets.
// Compared to a fixed window this avoids the reset spike at the minute
// boundary, and compared to a per-request timestamp log it holds memory
// constant regardless of request rate.
//
// # Thread Safety
//
// All primitives are individually thread-safe; KeyLimiter additionally
// serializes admission per key so the multi-step check is atomic. Keys never
// contend with each other.
package ratelimit
