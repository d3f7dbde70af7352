package breaker

import (
	"sync"
	"time"
)

// State is the breaker state.
type State string

const (
	// StateClosed admits all requests and counts consecutive failures.
	StateClosed State = "closed"
	// StateOpen rejects requests until the cooldown elapses.
	StateOpen State = "open"
	// StateHalfOpen admits exactly one trial request.
	StateHalfOpen State = "half_open"
)

// Verdict is the admission decision for one dispatch attempt.
type Verdict int

const (
	// VerdictPass admits the attempt on a closed breaker.
	VerdictPass Verdict = iota
	// VerdictTrial admits the attempt as the half-open trial.
	VerdictTrial
	// VerdictOpen rejects the attempt.
	VerdictOpen
)

// String returns the verdict name for logs and metrics.
func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictTrial:
		return "trial"
	default:
		return "open"
	}
}

// Config contains breaker tuning shared by all pairs.
type Config struct {
	// FailureThreshold is the consecutive failure count that trips a
	// closed breaker open.
	FailureThreshold int `yaml:"failure_threshold"`

	// Cooldown is how long an open breaker rejects before probing.
	Cooldown time.Duration `yaml:"cooldown"`
}

// DefaultConfig is applied where fields are zero.
var DefaultConfig = Config{
	FailureThreshold: 5,
	Cooldown:         30 * time.Second,
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultConfig.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultConfig.Cooldown
	}
	return c
}

// Breaker is the circuit breaker for one (provider, model) pair.
//
// All transitions happen under the breaker's mutex, so the half-open state
// admits exactly one trial no matter how many goroutines race on Acquire.
type Breaker struct {
	mu  sync.Mutex
	cfg Config

	state               State
	consecutiveFailures int
	openedAt            time.Time
	lastAttemptAt       time.Time
	trialInFlight       bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg Config) *Breaker {
	return &Breaker{
		cfg:   cfg.withDefaults(),
		state: StateClosed,
	}
}

// Acquire decides whether a dispatch attempt may proceed.
//
// On an open breaker whose cooldown has elapsed, the caller becomes the
// half-open trial; everyone else keeps getting VerdictOpen until the trial
// resolves through RecordSuccess or RecordFailure.
func (b *Breaker) Acquire() Verdict {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.lastAttemptAt = now

	switch b.state {
	case StateClosed:
		return VerdictPass

	case StateOpen:
		if now.Sub(b.openedAt) >= b.cfg.Cooldown {
			b.state = StateHalfOpen
			b.trialInFlight = true
			return VerdictTrial
		}
		return VerdictOpen

	default: // StateHalfOpen
		if !b.trialInFlight {
			b.trialInFlight = true
			return VerdictTrial
		}
		return VerdictOpen
	}
}

// RecordSuccess records a countable success. It closes the breaker and
// resets the failure count; for a half-open trial this is the recovery path.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.consecutiveFailures = 0
	b.trialInFlight = false
}

// RecordFailure records a countable failure (timeout, connection error,
// 5xx, 429, 402). A closed breaker trips at the threshold; a half-open
// trial failure reopens with a fresh cooldown; a failure while open (an
// emergency bypass dispatch) also restarts the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.consecutiveFailures++

	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = now
		}

	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = now
		b.trialInFlight = false

	case StateOpen:
		b.openedAt = now
	}
}

// ReleaseTrial hands an unresolved half-open trial slot back without
// counting a success or failure. Used when the trial dispatch aborted for
// reasons unrelated to provider health (the caller went away); the next
// Acquire becomes the trial.
func (b *Breaker) ReleaseTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
}

// State returns the current state, accounting for an elapsed cooldown that
// no Acquire has observed yet (reported as open; the transition happens on
// the next Acquire).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot is a point-in-time view of one breaker for the admin surface.
type Snapshot struct {
	Provider            string    `json:"provider"`
	Model               string    `json:"model"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	LastAttemptAt       time.Time `json:"last_attempt_at,omitempty"`
}

// snapshot captures the breaker under its lock.
func (b *Breaker) snapshot(provider, model string) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Provider:            provider,
		Model:               model,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		OpenedAt:            b.openedAt,
		LastAttemptAt:       b.lastAttemptAt,
	}
}
