package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow is a rolling counter over a fixed time window.
//
// The window tracks requests or tokens over a rolling period. Entries older
// than the window are pruned automatically, so the count never exhibits the
// reset spike of a fixed window.
//
// # Algorithm
//
//  1. Prune buckets older than the window duration
//  2. Add the value to the bucket for the current time slice
//  3. Sum the remaining buckets to get current usage
//
// # Memory
//
// A circular buffer of window/granularity buckets bounds memory regardless
// of request rate: a 1-minute window at 1-second granularity is 60 buckets.
type SlidingWindow struct {
	window      time.Duration // window duration
	granularity time.Duration // width of each bucket
	buckets     []bucket      // circular buffer
	head        int           // current write position
	mu          sync.Mutex
}

// bucket is a single time-stamped counter slice.
type bucket struct {
	timestamp time.Time
	value     int64
}

// NewSlidingWindow creates a rolling counter.
//
// Parameters:
//   - window: total window duration (e.g. 1 minute)
//   - granularity: bucket width (e.g. 1 second)
//
// Smaller granularity gives a more accurate rolling edge at the cost of more
// buckets.
func NewSlidingWindow(window, granularity time.Duration) *SlidingWindow {
	n := int(window / granularity)
	if n == 0 {
		n = 1
	}
	return &SlidingWindow{
		window:      window,
		granularity: granularity,
		buckets:     make([]bucket, n),
	}
}

// Add increments the counter by value in the current time slice.
func (sw *SlidingWindow) Add(value int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.pruneLocked(now)
	sw.currentBucketLocked(now).value += value
}

// Sum returns the total across all live buckets, pruning expired ones first.
func (sw *SlidingWindow) Sum() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(time.Now())

	var sum int64
	for i := range sw.buckets {
		if !sw.buckets[i].timestamp.IsZero() {
			sum += sw.buckets[i].value
		}
	}
	return sum
}

// TimeToExpiry returns how long until the oldest live bucket leaves the
// window, which is when denied callers should retry. Returns the granularity
// as a floor so callers never busy-loop on a zero hint.
func (sw *SlidingWindow) TimeToExpiry() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.pruneLocked(now)

	var oldest time.Time
	for i := range sw.buckets {
		ts := sw.buckets[i].timestamp
		if ts.IsZero() {
			continue
		}
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}

	if oldest.IsZero() {
		return sw.granularity
	}

	d := oldest.Add(sw.window).Sub(now)
	if d < sw.granularity {
		d = sw.granularity
	}
	return d
}

// Reset clears all buckets.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for i := range sw.buckets {
		sw.buckets[i] = bucket{}
	}
	sw.head = 0
}

// pruneLocked clears buckets older than the window. Caller must hold mu.
func (sw *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)
	for i := range sw.buckets {
		if !sw.buckets[i].timestamp.IsZero() && sw.buckets[i].timestamp.Before(cutoff) {
			sw.buckets[i] = bucket{}
		}
	}
}

// currentBucketLocked returns the bucket for the current time slice,
// creating it in an empty or the oldest slot if needed. Caller must hold mu.
func (sw *SlidingWindow) currentBucketLocked(now time.Time) *bucket {
	slice := now.Truncate(sw.granularity)

	if sw.buckets[sw.head].timestamp.Equal(slice) {
		return &sw.buckets[sw.head]
	}

	for i := range sw.buckets {
		if sw.buckets[i].timestamp.Equal(slice) {
			return &sw.buckets[i]
		}
	}

	// No bucket for this slice yet: reuse an empty slot, else evict the
	// oldest (it is outside the window or about to be).
	target := -1
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		target = 0
		for i := 1; i < len(sw.buckets); i++ {
			if sw.buckets[i].timestamp.Before(sw.buckets[target].timestamp) {
				target = i
			}
		}
	}

	sw.buckets[target] = bucket{timestamp: slice}
	sw.head = target
	return &sw.buckets[target]
}
