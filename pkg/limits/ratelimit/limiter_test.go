package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Config Validation Tests
// ============================================================================

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"zero config is valid", Config{}, false},
		{"typical config", Config{RequestsPerMinute: 60, TokensPerMinute: 100000, BurstLimit: 90, ConcurrencyLimit: 8}, false},
		{"burst equal to rpm", Config{RequestsPerMinute: 60, BurstLimit: 60}, false},
		{"burst below rpm throttles request rate", Config{RequestsPerMinute: 60, BurstLimit: 10}, true},
		{"burst alone is valid", Config{BurstLimit: 10}, false},
		{"negative rpm", Config{RequestsPerMinute: -1}, true},
		{"negative tokens", Config{TokensPerMinute: -5}, true},
		{"negative burst", Config{BurstLimit: -1}, true},
		{"negative concurrency", Config{ConcurrencyLimit: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ============================================================================
// Check Order and Denial Tests
// ============================================================================

func TestCheckRequestWindowExhaustion(t *testing.T) {
	kl := NewKeyLimiter(Config{RequestsPerMinute: 3})

	for i := 0; i < 3; i++ {
		if res := kl.Check(0); !res.Allowed {
			t.Fatalf("request %d denied: %s", i+1, res.Reason)
		}
	}

	res := kl.Check(0)
	if res.Allowed {
		t.Fatal("4th request should be denied")
	}
	if res.Reason != ReasonRequestsPerMinute {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonRequestsPerMinute)
	}
	if res.Limit != 3 || res.Remaining != 0 {
		t.Errorf("Limit=%d Remaining=%d, want 3 and 0", res.Limit, res.Remaining)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want within (0, 1m]", res.RetryAfter)
	}
}

func TestCheckTokenWindowUsesEstimate(t *testing.T) {
	kl := NewKeyLimiter(Config{TokensPerMinute: 1000})

	if res := kl.Check(600); !res.Allowed {
		t.Fatalf("first request denied: %s", res.Reason)
	}
	kl.RecordTokens(600)

	res := kl.Check(600)
	if res.Allowed {
		t.Fatal("estimate exceeding window headroom should be denied")
	}
	if res.Reason != ReasonTokensPerMinute {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonTokensPerMinute)
	}
	if res.Remaining != 400 {
		t.Errorf("Remaining = %d, want 400", res.Remaining)
	}

	// A smaller request still fits.
	if res := kl.Check(300); !res.Allowed {
		t.Errorf("300-token request should fit in remaining headroom, denied: %s", res.Reason)
	}
}

func TestCheckBurstExhaustion(t *testing.T) {
	kl := NewKeyLimiter(Config{BurstLimit: 3})

	for i := 0; i < 3; i++ {
		if res := kl.Check(0); !res.Allowed {
			t.Fatalf("request %d denied: %s", i+1, res.Reason)
		}
	}

	res := kl.Check(0)
	if res.Allowed {
		t.Fatal("request after burst drain should be denied")
	}
	if res.Reason != ReasonBurst {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonBurst)
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive refill hint", res.RetryAfter)
	}
}

func TestCheckBurstDeniesBeforeWindowWhenWindowHasRoom(t *testing.T) {
	// Window allows 120/min but the burst bucket only holds 60: sequential
	// traffic past 60 hits the burst limit, not the window.
	kl := NewKeyLimiter(Config{RequestsPerMinute: 120, BurstLimit: 60})

	admitted, burstDenied := 0, 0
	for i := 0; i < 65; i++ {
		res := kl.Check(0)
		switch {
		case res.Allowed:
			admitted++
		case res.Reason == ReasonBurst:
			burstDenied++
		default:
			t.Fatalf("unexpected denial reason %q", res.Reason)
		}
	}

	if admitted < 60 || admitted == 65 {
		t.Errorf("admitted = %d, want 60-64", admitted)
	}
	if burstDenied == 0 {
		t.Error("expected at least one burst denial")
	}
}

func TestCheckDenialConsumesNothing(t *testing.T) {
	kl := NewKeyLimiter(Config{RequestsPerMinute: 5, ConcurrencyLimit: 1})

	first := kl.Check(0)
	if !first.Allowed {
		t.Fatalf("first request denied: %s", first.Reason)
	}

	// Denied on concurrency while the first is in flight.
	denied := kl.Check(0)
	if denied.Allowed || denied.Reason != ReasonConcurrency {
		t.Fatalf("expected concurrency denial, got allowed=%v reason=%q", denied.Allowed, denied.Reason)
	}
	kl.ReleaseConcurrent()

	// The denial must not have counted against the request window: four
	// more requests fit in the 5/min budget.
	for i := 0; i < 4; i++ {
		res := kl.Check(0)
		if !res.Allowed {
			t.Fatalf("request %d denied (%s): the earlier denial leaked into the window", i+2, res.Reason)
		}
		kl.ReleaseConcurrent()
	}
}

// ============================================================================
// Concurrency Scenario Tests
// ============================================================================

func TestCheckConcurrencyCapUnderLoad(t *testing.T) {
	// 65 simultaneous admissions against rpm=60, burst=60, concurrency=5
	// with nobody releasing: exactly 5 may hold slots, the rest deny on
	// concurrency, and no counter is consumed by the denied majority.
	kl := NewKeyLimiter(Config{RequestsPerMinute: 60, BurstLimit: 60, ConcurrencyLimit: 5})

	var wg sync.WaitGroup
	results := make([]*CheckResult, 65)
	for i := 0; i < 65; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = kl.Check(100)
		}(i)
	}
	wg.Wait()

	admitted, concurrencyDenied := 0, 0
	for _, res := range results {
		switch {
		case res.Allowed:
			admitted++
		case res.Reason == ReasonConcurrency:
			concurrencyDenied++
		default:
			t.Errorf("unexpected denial reason %q", res.Reason)
		}
	}

	if admitted != 5 {
		t.Errorf("admitted = %d, want exactly the concurrency cap of 5", admitted)
	}
	if concurrencyDenied != 60 {
		t.Errorf("concurrency denials = %d, want 60", concurrencyDenied)
	}
	if kl.InFlight() != 5 {
		t.Errorf("InFlight = %d, want 5", kl.InFlight())
	}

	for i := 0; i < admitted; i++ {
		kl.ReleaseConcurrent()
	}
	if kl.InFlight() != 0 {
		t.Errorf("InFlight after release = %d, want 0", kl.InFlight())
	}
}

func TestReleaseRestoresConcurrency(t *testing.T) {
	kl := NewKeyLimiter(Config{ConcurrencyLimit: 2})

	if res := kl.Check(0); !res.Allowed {
		t.Fatal("first admit denied")
	}
	if res := kl.Check(0); !res.Allowed {
		t.Fatal("second admit denied")
	}
	if res := kl.Check(0); res.Allowed {
		t.Fatal("third admit should deny at cap")
	}

	kl.ReleaseConcurrent()
	if res := kl.Check(0); !res.Allowed {
		t.Error("admit after release should succeed")
	}
}

// ============================================================================
// Sliding Window Tests
// ============================================================================

func TestSlidingWindowSum(t *testing.T) {
	sw := NewSlidingWindow(time.Minute, time.Second)

	sw.Add(5)
	sw.Add(3)
	if got := sw.Sum(); got != 8 {
		t.Errorf("Sum() = %d, want 8", got)
	}

	sw.Reset()
	if got := sw.Sum(); got != 0 {
		t.Errorf("Sum() after Reset = %d, want 0", got)
	}
}

func TestSlidingWindowExpiry(t *testing.T) {
	// 100ms window at 10ms granularity so expiry is observable in a test.
	sw := NewSlidingWindow(100*time.Millisecond, 10*time.Millisecond)

	sw.Add(10)
	if got := sw.Sum(); got != 10 {
		t.Fatalf("Sum() = %d, want 10", got)
	}

	time.Sleep(150 * time.Millisecond)
	if got := sw.Sum(); got != 0 {
		t.Errorf("Sum() after window elapsed = %d, want 0", got)
	}
}

func TestSlidingWindowTimeToExpiry(t *testing.T) {
	sw := NewSlidingWindow(time.Minute, time.Second)
	sw.Add(1)

	d := sw.TimeToExpiry()
	if d <= 0 || d > time.Minute {
		t.Errorf("TimeToExpiry() = %v, want within (0, 1m]", d)
	}

	empty := NewSlidingWindow(time.Minute, time.Second)
	if d := empty.TimeToExpiry(); d != time.Second {
		t.Errorf("empty window TimeToExpiry() = %v, want granularity floor", d)
	}
}

// ============================================================================
// Token Bucket Tests
// ============================================================================

func TestTokenBucketDrain(t *testing.T) {
	tb := NewTokenBucket(3, 0.001) // effectively no refill during the test

	for i := 0; i < 3; i++ {
		if !tb.TakeOne() {
			t.Fatalf("TakeOne %d failed with tokens available", i+1)
		}
	}
	if tb.TakeOne() {
		t.Error("TakeOne succeeded on an empty bucket")
	}
	if tb.Available() != 0 {
		t.Errorf("Available() = %d, want 0", tb.Available())
	}
}

func TestTokenBucketFractionalRefill(t *testing.T) {
	tb := NewTokenBucket(10, 20) // 20 tokens/sec
	for i := 0; i < 10; i++ {
		tb.TakeOne()
	}
	if tb.TakeOne() {
		t.Fatal("bucket should be empty")
	}

	// At 20/sec one token accrues in 50ms.
	time.Sleep(120 * time.Millisecond)
	if !tb.TakeOne() {
		t.Error("bucket should have refilled at least one token")
	}
}

func TestTokenBucketTimeUntilNext(t *testing.T) {
	tb := NewTokenBucket(1, 2) // 2 tokens/sec
	if d := tb.TimeUntilNext(); d != 0 {
		t.Errorf("full bucket TimeUntilNext() = %v, want 0", d)
	}

	tb.TakeOne()
	d := tb.TimeUntilNext()
	if d <= 0 || d > time.Second {
		t.Errorf("TimeUntilNext() = %v, want within (0, 500ms] plus slack", d)
	}
}

// ============================================================================
// Concurrent Limiter Tests
// ============================================================================

func TestConcurrentLimiterRace(t *testing.T) {
	cl := NewConcurrentLimiter(10)

	var wg sync.WaitGroup
	var acquired sync.Map
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if cl.Acquire() {
				acquired.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	acquired.Range(func(_, _ any) bool { count++; return true })
	if count != 10 {
		t.Errorf("acquired = %d, want exactly the limit of 10", count)
	}
	if cl.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", cl.Remaining())
	}
}
