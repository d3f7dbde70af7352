package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm with fractional refill.
//
// The bucket allows bursts up to its capacity while sustaining a constant
// average rate. Tokens accrue continuously as a float so that slow refill
// rates (e.g. one token per second) are not truncated away between calls.
//
// # Algorithm
//
//  1. Accrue tokens for the elapsed time since the last refill
//  2. Cap at capacity
//  3. If at least one token is available, consume it and admit
//  4. Otherwise deny and report the time until the next token
type TokenBucket struct {
	capacity   float64   // maximum tokens in the bucket
	tokens     float64   // current available tokens
	refillRate float64   // tokens added per second
	lastRefill time.Time // last accrual time
	mu         sync.Mutex
}

// NewTokenBucket creates a token bucket that starts full.
//
// Parameters:
//   - capacity: burst size
//   - refillRate: tokens added per second (sustained rate)
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// TakeOne consumes one token if available. Returns true if the token was
// consumed.
func (tb *TokenBucket) TakeOne() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(time.Now())
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Available refills and returns the current token count, truncated to whole
// tokens. It does not consume anything.
func (tb *TokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(time.Now())
	return int(tb.tokens)
}

// Capacity returns the bucket's burst size.
func (tb *TokenBucket) Capacity() int {
	return int(tb.capacity)
}

// TimeUntilNext returns how long until one token will be available.
// Returns 0 if a token is available now.
func (tb *TokenBucket) TimeUntilNext() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(time.Now())
	if tb.tokens >= 1.0 {
		return 0
	}
	if tb.refillRate <= 0 {
		return time.Minute
	}
	deficit := 1.0 - tb.tokens
	return time.Duration(deficit / tb.refillRate * float64(time.Second))
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refillLocked accrues tokens for the time elapsed since the last refill.
// Caller must hold mu.
func (tb *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
