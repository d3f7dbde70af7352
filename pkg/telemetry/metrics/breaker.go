package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BreakerMetrics tracks circuit breaker state across (provider, model) pairs.
//
// Metrics:
//   - meridian_breaker_state: current state per pair (0=closed, 1=half_open, 2=open)
//   - meridian_breaker_transitions_total: state transitions by destination state
//   - meridian_breaker_rejections_total: dispatches skipped due to an open breaker
type BreakerMetrics struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// NewBreakerMetrics creates and registers breaker collectors.
func NewBreakerMetrics(registry *prometheus.Registry) *BreakerMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	bm := &BreakerMetrics{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "meridian",
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Breaker state per provider/model pair (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider", "model"},
		),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "breaker",
				Name:      "transitions_total",
				Help:      "Breaker state transitions by destination state",
			},
			[]string{"provider", "model", "to"},
		),

		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "breaker",
				Name:      "rejections_total",
				Help:      "Dispatch attempts skipped because the breaker was open",
			},
			[]string{"provider", "model"},
		),
	}

	registry.MustRegister(bm.state, bm.transitions, bm.rejections)
	return bm
}

// SetState updates the state gauge for a pair.
func (bm *BreakerMetrics) SetState(provider, model string, state float64) {
	bm.state.WithLabelValues(provider, model).Set(state)
}

// RecordTransition records a state transition.
func (bm *BreakerMetrics) RecordTransition(provider, model, to string) {
	bm.transitions.WithLabelValues(provider, model, to).Inc()
}

// RecordRejection records a dispatch skipped by an open breaker.
func (bm *BreakerMetrics) RecordRejection(provider, model string) {
	bm.rejections.WithLabelValues(provider, model).Inc()
}
