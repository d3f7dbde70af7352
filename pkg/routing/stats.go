package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks live routing counters with atomic operations, independent of
// the Prometheus collectors, for the admin surface.
type Stats struct {
	totalRequests atomic.Int64

	// requestsPerProvider counts winning dispatches per provider.
	requestsPerProvider sync.Map // map[string]*atomic.Int64

	failovers atomic.Int64
	emergency atomic.Int64
	errors    atomic.Int64

	mu            sync.RWMutex
	lastResetTime time.Time
}

// StatsSnapshot is a point-in-time copy of the counters, safe to read
// without locks.
type StatsSnapshot struct {
	TotalRequests       int64            `json:"total_requests"`
	RequestsPerProvider map[string]int64 `json:"requests_per_provider"`
	Failovers           int64            `json:"failovers"`
	EmergencyDispatches int64            `json:"emergency_dispatches"`
	Errors              int64            `json:"errors"`
	LastResetTime       time.Time        `json:"last_reset_time"`
}

// NewStats creates a zeroed statistics tracker.
func NewStats() *Stats {
	return &Stats{lastResetTime: time.Now()}
}

// IncrementTotal counts one routed request.
func (s *Stats) IncrementTotal() {
	s.totalRequests.Add(1)
}

// IncrementProvider counts a winning dispatch for a provider.
func (s *Stats) IncrementProvider(provider string) {
	val, _ := s.requestsPerProvider.LoadOrStore(provider, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

// IncrementFailovers counts one candidate-to-candidate failover step.
func (s *Stats) IncrementFailovers() {
	s.failovers.Add(1)
}

// IncrementEmergency counts an all-breakers-open bypass.
func (s *Stats) IncrementEmergency() {
	s.emergency.Add(1)
}

// IncrementErrors counts a request that produced no response.
func (s *Stats) IncrementErrors() {
	s.errors.Add(1)
}

// Snapshot returns a point-in-time copy of the statistics.
func (s *Stats) Snapshot() *StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perProvider := make(map[string]int64)
	s.requestsPerProvider.Range(func(key, value any) bool {
		perProvider[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	return &StatsSnapshot{
		TotalRequests:       s.totalRequests.Load(),
		RequestsPerProvider: perProvider,
		Failovers:           s.failovers.Load(),
		EmergencyDispatches: s.emergency.Load(),
		Errors:              s.errors.Load(),
		LastResetTime:       s.lastResetTime,
	}
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.totalRequests.Store(0)
	s.failovers.Store(0)
	s.emergency.Store(0)
	s.errors.Store(0)

	s.requestsPerProvider.Range(func(key, value any) bool {
		s.requestsPerProvider.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
