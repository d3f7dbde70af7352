package limits

import (
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"meridian-hq/meridian/pkg/limits/ratelimit"
)

// numShards spreads key state across independent locks. Power of two so the
// hash folds cheaply.
const numShards = 32

// sweepInterval is how often the idle-prune pass runs.
const sweepInterval = time.Minute

// keyState is the live limiter state for one client key.
type keyState struct {
	limiter  *ratelimit.KeyLimiter
	lastSeen atomic.Int64 // unix nanos of the last admission touch
}

// shard is one lock domain of the key map.
type shard struct {
	mu   sync.RWMutex
	keys map[string]*keyState
}

// Registry owns all per-key limiter state and is the single admission entry
// point for the gateway.
//
// # Example
//
//	registry := limits.NewRegistry(provider, limits.RegistryOptions{
//	    Logger:  logger,
//	    Metrics: metrics,
//	})
//	defer registry.Close()
//
//	decision, release := registry.Admit("api-key-123", estimate.TotalTokens)
//	defer release(actualTokens)
//	if !decision.Allowed {
//	    // reply 429 with decision.RetryAfter
//	}
type Registry struct {
	shards  [numShards]*shard
	configs ConfigProvider

	idleTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics

	stopOnce sync.Once
	stop     chan struct{}
}

// RegistryOptions configures optional registry behavior. Zero values select
// sane defaults.
type RegistryOptions struct {
	// IdleTimeout prunes key state unused for this long (default 15m).
	IdleTimeout time.Duration

	// Logger receives degraded-mode and prune events (default slog.Default).
	Logger *slog.Logger

	// Metrics receives admission counters (default: unregistered no-op set).
	Metrics *Metrics
}

// NewRegistry creates a registry backed by the given config provider and
// starts the idle-prune sweep. Callers must Close the registry to stop it.
func NewRegistry(configs ConfigProvider, opts RegistryOptions) *Registry {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	r := &Registry{
		configs:     configs,
		idleTimeout: opts.IdleTimeout,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		stop:        make(chan struct{}),
	}
	for i := range r.shards {
		r.shards[i] = &shard{keys: make(map[string]*keyState)}
	}

	go r.sweepLoop()

	return r
}

// Admit decides whether the request identified by key may proceed, checking
// the estimated token count against the key's limits.
//
// The returned ReleaseFunc must be called exactly once on every exit path of
// an admitted request, with the actual token usage (0 when the request
// failed before producing usage). For denied requests the ReleaseFunc is a
// no-op and may still be called safely.
func (r *Registry) Admit(key string, estimatedTokens int) (Decision, ReleaseFunc) {
	state := r.state(key)
	state.lastSeen.Store(time.Now().UnixNano())

	start := time.Now()
	res := state.limiter.Check(estimatedTokens)
	r.metrics.ObserveCheckDuration(time.Since(start))

	if !res.Allowed {
		r.metrics.RecordAdmission(false, res.Reason)
		return Decision{
			Reason:     res.Reason,
			Limit:      res.Limit,
			Remaining:  res.Remaining,
			RetryAfter: res.RetryAfter,
		}, func(int) {}
	}

	r.metrics.RecordAdmission(true, "")

	var once sync.Once
	release := func(actualTokens int) {
		once.Do(func() {
			state.limiter.ReleaseConcurrent()
			state.limiter.RecordTokens(actualTokens)
			state.lastSeen.Store(time.Now().UnixNano())
		})
	}

	return Decision{Allowed: true}, release
}

// Close stops the background sweep. Outstanding release funcs stay valid.
func (r *Registry) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

// ActiveKeys returns the number of keys currently holding limiter state.
func (r *Registry) ActiveKeys() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.keys)
		s.mu.RUnlock()
	}
	return total
}

// state returns the limiter state for key, creating it on first use.
func (r *Registry) state(key string) *keyState {
	s := r.shardFor(key)

	s.mu.RLock()
	st, ok := s.keys[key]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.keys[key]; ok {
		return st
	}

	st = &keyState{limiter: ratelimit.NewKeyLimiter(r.configFor(key))}
	s.keys[key] = st
	r.metrics.AddActiveKeys(1)
	return st
}

// configFor resolves the key's config, falling back to DefaultConfig when
// the provider fails or returns an invalid config. The fallback keeps the
// gateway serving with conservative limits instead of failing admission.
func (r *Registry) configFor(key string) ratelimit.Config {
	if r.configs == nil {
		return DefaultConfig
	}

	cfg, err := r.configs.ConfigFor(key)
	if err != nil {
		r.logger.Warn("rate limit config lookup failed, applying default limits",
			"key", key,
			"error", err)
		r.metrics.RecordConfigFallback()
		return DefaultConfig
	}
	if err := cfg.Validate(); err != nil {
		r.logger.Warn("rate limit config invalid, applying default limits",
			"key", key,
			"error", err)
		r.metrics.RecordConfigFallback()
		return DefaultConfig
	}
	return cfg
}

// shardFor maps a key to its shard by FNV-1a hash.
func (r *Registry) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return r.shards[h.Sum32()&(numShards-1)]
}

// sweepLoop prunes idle key state until Close.
func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

// sweep removes keys idle past the timeout. Keys with requests still in
// flight are kept regardless of age so their release funcs stay accounted.
func (r *Registry) sweep(now time.Time) {
	cutoff := now.Add(-r.idleTimeout).UnixNano()
	pruned := 0

	for _, s := range r.shards {
		s.mu.Lock()
		for key, st := range s.keys {
			if st.lastSeen.Load() < cutoff && st.limiter.InFlight() == 0 {
				delete(s.keys, key)
				pruned++
			}
		}
		s.mu.Unlock()
	}

	if pruned > 0 {
		r.logger.Debug("pruned idle rate limit state", "keys", pruned)
		r.metrics.AddActiveKeys(-pruned)
	}
}
