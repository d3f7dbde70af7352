package ratelimit

import (
	"sync"
	"time"
)

// concurrencyRetryDelay is the retry hint for concurrency denials. Slots
// free as soon as any in-flight request finishes, so there is no window
// arithmetic to offer; a short fixed delay is the honest answer.
const concurrencyRetryDelay = 100 * time.Millisecond

// KeyLimiter composes the three limiting strategies for one client key.
//
// Checks run in a fixed order: window requests, window tokens, burst bucket,
// concurrency. The first dimension that would be exceeded denies the request
// and nothing is consumed; on admission all dimensions are consumed together.
//
// A denial is an expected outcome, not an error, so the result is a value
// describing the decision.
type KeyLimiter struct {
	config Config

	requests   *SlidingWindow     // nil when RequestsPerMinute == 0
	tokens     *SlidingWindow     // nil when TokensPerMinute == 0
	burst      *TokenBucket       // nil when BurstLimit == 0
	concurrent *ConcurrentLimiter // nil when ConcurrencyLimit == 0

	// mu serializes the multi-step admission so check-then-consume is
	// atomic per key. Keys never share a KeyLimiter.
	mu sync.Mutex
}

// NewKeyLimiter builds a limiter for the given config. Zero-valued
// dimensions are disabled.
func NewKeyLimiter(config Config) *KeyLimiter {
	kl := &KeyLimiter{config: config}

	if config.RequestsPerMinute > 0 {
		kl.requests = NewSlidingWindow(time.Minute, time.Second)
	}
	if config.TokensPerMinute > 0 {
		kl.tokens = NewSlidingWindow(time.Minute, time.Second)
	}
	if config.BurstLimit > 0 {
		kl.burst = NewTokenBucket(config.BurstLimit, float64(config.BurstLimit)/60.0)
	}
	if config.ConcurrencyLimit > 0 {
		kl.concurrent = NewConcurrentLimiter(config.ConcurrencyLimit)
	}

	return kl
}

// Check decides admission for one request carrying estimatedTokens.
//
// On admission the request is counted against the window and burst bucket
// and a concurrency slot is held; the caller must call ReleaseConcurrent
// exactly once when the request finishes, on every exit path. On denial
// nothing is consumed.
func (kl *KeyLimiter) Check(estimatedTokens int) *CheckResult {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	// 1. Request count over the rolling window.
	if kl.requests != nil {
		used := kl.requests.Sum()
		if used+1 > int64(kl.config.RequestsPerMinute) {
			return &CheckResult{
				Reason:     ReasonRequestsPerMinute,
				Limit:      int64(kl.config.RequestsPerMinute),
				Remaining:  clampNonNegative(int64(kl.config.RequestsPerMinute) - used),
				RetryAfter: kl.requests.TimeToExpiry(),
			}
		}
	}

	// 2. Token count over the rolling window, against the estimate.
	if kl.tokens != nil {
		used := kl.tokens.Sum()
		if used+int64(estimatedTokens) > int64(kl.config.TokensPerMinute) {
			return &CheckResult{
				Reason:     ReasonTokensPerMinute,
				Limit:      int64(kl.config.TokensPerMinute),
				Remaining:  clampNonNegative(int64(kl.config.TokensPerMinute) - used),
				RetryAfter: kl.tokens.TimeToExpiry(),
			}
		}
	}

	// 3. Burst bucket.
	if kl.burst != nil && kl.burst.Available() < 1 {
		return &CheckResult{
			Reason:     ReasonBurst,
			Limit:      int64(kl.burst.Capacity()),
			Remaining:  0,
			RetryAfter: kl.burst.TimeUntilNext(),
		}
	}

	// 4. Concurrency cap. Acquire is the consuming step for this
	// dimension, so it runs last.
	if kl.concurrent != nil && !kl.concurrent.Acquire() {
		return &CheckResult{
			Reason:     ReasonConcurrency,
			Limit:      kl.concurrent.Limit(),
			Remaining:  kl.concurrent.Remaining(),
			RetryAfter: concurrencyRetryDelay,
		}
	}

	// Admitted: consume the remaining dimensions.
	if kl.requests != nil {
		kl.requests.Add(1)
	}
	if kl.burst != nil {
		kl.burst.TakeOne()
	}

	return &CheckResult{Allowed: true}
}

// RecordTokens records actual token usage after a request completes.
// Actual usage supersedes the admission estimate in the rolling window.
func (kl *KeyLimiter) RecordTokens(actualTokens int) {
	if kl.tokens != nil && actualTokens > 0 {
		kl.tokens.Add(int64(actualTokens))
	}
}

// ReleaseConcurrent frees the concurrency slot held by an admitted request.
func (kl *KeyLimiter) ReleaseConcurrent() {
	if kl.concurrent != nil {
		kl.concurrent.Release()
	}
}

// InFlight returns the number of requests currently holding a slot.
func (kl *KeyLimiter) InFlight() int64 {
	if kl.concurrent == nil {
		return 0
	}
	return kl.concurrent.Current()
}

// Config returns the limiter's configuration.
func (kl *KeyLimiter) Config() Config {
	return kl.config
}

// Reset clears all counters. Primarily for tests.
func (kl *KeyLimiter) Reset() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if kl.requests != nil {
		kl.requests.Reset()
	}
	if kl.tokens != nil {
		kl.tokens.Reset()
	}
	if kl.burst != nil {
		kl.burst.Reset()
	}
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
