package breaker

import (
	"log/slog"
	"sort"
	"sync"

	"meridian-hq/meridian/pkg/telemetry/metrics"
)

// pairKey identifies one (provider, model) breaker.
type pairKey struct {
	provider string
	model    string
}

// Registry owns the breakers for all (provider, model) pairs, creating them
// lazily on first acquire. Pairs never share state: a provider failing on
// one model keeps serving others.
type Registry struct {
	mu       sync.RWMutex
	breakers map[pairKey]*Breaker

	cfg     Config
	logger  *slog.Logger
	metrics *metrics.BreakerMetrics
}

// RegistryOptions configures optional registry behavior.
type RegistryOptions struct {
	// Logger receives transition events (default slog.Default).
	Logger *slog.Logger

	// Metrics receives state gauges and transition counters (default:
	// unregistered no-op set).
	Metrics *metrics.BreakerMetrics
}

// NewRegistry creates a breaker registry with shared tuning.
func NewRegistry(cfg Config, opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewBreakerMetrics(nil)
	}

	return &Registry{
		breakers: make(map[pairKey]*Breaker),
		cfg:      cfg.withDefaults(),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Acquire decides whether a dispatch to (provider, model) may proceed.
func (r *Registry) Acquire(provider, model string) Verdict {
	b := r.breaker(provider, model)

	before := b.State()
	verdict := b.Acquire()
	r.observeTransition(provider, model, before, b.State())

	if verdict == VerdictOpen {
		r.metrics.RecordRejection(provider, model)
	}
	return verdict
}

// RecordSuccess records a successful dispatch for the pair.
func (r *Registry) RecordSuccess(provider, model string) {
	b := r.breaker(provider, model)

	before := b.State()
	b.RecordSuccess()
	r.observeTransition(provider, model, before, b.State())
}

// RecordFailure records a countable failure for the pair.
func (r *Registry) RecordFailure(provider, model string) {
	b := r.breaker(provider, model)

	before := b.State()
	b.RecordFailure()
	r.observeTransition(provider, model, before, b.State())
}

// ReleaseTrial hands back the pair's unresolved half-open trial slot
// without counting a success or failure.
func (r *Registry) ReleaseTrial(provider, model string) {
	r.breaker(provider, model).ReleaseTrial()
}

// State returns the current state for a pair without creating it; absent
// pairs report closed, which matches how a fresh breaker would behave.
func (r *Registry) State(provider, model string) State {
	r.mu.RLock()
	b, ok := r.breakers[pairKey{provider, model}]
	r.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return b.State()
}

// Snapshot returns the state of every known pair, ordered by provider then
// model, for the admin surface.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	snapshots := make([]Snapshot, 0, len(r.breakers))
	for key, b := range r.breakers {
		snapshots = append(snapshots, b.snapshot(key.provider, key.model))
	}
	r.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].Provider != snapshots[j].Provider {
			return snapshots[i].Provider < snapshots[j].Provider
		}
		return snapshots[i].Model < snapshots[j].Model
	})
	return snapshots
}

// breaker returns the pair's breaker, creating it on first use.
func (r *Registry) breaker(provider, model string) *Breaker {
	key := pairKey{provider, model}

	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b = NewBreaker(r.cfg)
	r.breakers[key] = b
	return b
}

// observeTransition logs and meters a state change.
func (r *Registry) observeTransition(provider, model string, before, after State) {
	if before == after {
		return
	}

	r.logger.Info("circuit breaker state change",
		"provider", provider,
		"model", model,
		"from", string(before),
		"to", string(after))

	r.metrics.RecordTransition(provider, model, string(after))
	r.metrics.SetState(provider, model, stateValue(after))
}

// stateValue maps states onto the gauge scale (0=closed, 1=half_open,
// 2=open).
func stateValue(s State) float64 {
	switch s {
	case StateClosed:
		return 0
	case StateHalfOpen:
		return 1
	default:
		return 2
	}
}
