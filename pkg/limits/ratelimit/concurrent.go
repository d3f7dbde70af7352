package ratelimit

import "sync/atomic"

// ConcurrentLimiter caps the number of simultaneous in-flight requests.
//
// It is a counting semaphore built on atomic operations: increment, check
// against the limit, decrement on overshoot. No locks, no channels, so a
// denial costs two atomic adds.
type ConcurrentLimiter struct {
	limit   int64
	current atomic.Int64
}

// NewConcurrentLimiter creates a limiter allowing at most limit simultaneous
// holders.
func NewConcurrentLimiter(limit int) *ConcurrentLimiter {
	return &ConcurrentLimiter{limit: int64(limit)}
}

// Acquire attempts to take a concurrency slot. Returns true if acquired;
// the caller must then call Release exactly once when the request finishes,
// on every exit path.
func (cl *ConcurrentLimiter) Acquire() bool {
	if cl.current.Add(1) > cl.limit {
		cl.current.Add(-1)
		return false
	}
	return true
}

// Release returns a slot taken by a successful Acquire.
func (cl *ConcurrentLimiter) Release() {
	cl.current.Add(-1)
}

// Current returns the number of in-flight holders.
func (cl *ConcurrentLimiter) Current() int64 {
	return cl.current.Load()
}

// Limit returns the configured cap.
func (cl *ConcurrentLimiter) Limit() int64 {
	return cl.limit
}

// Remaining returns the number of free slots.
func (cl *ConcurrentLimiter) Remaining() int64 {
	remaining := cl.limit - cl.current.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}
