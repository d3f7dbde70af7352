package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RoutingMetrics tracks failover router activity.
//
// Metrics:
//   - meridian_routing_attempts_total: dispatch attempts by provider, model, outcome
//   - meridian_routing_requests_total: routed requests by terminal status
//   - meridian_routing_attempt_duration_seconds: per-attempt latency
//   - meridian_routing_emergency_dispatches_total: all-breakers-open bypasses
type RoutingMetrics struct {
	attempts            *prometheus.CounterVec
	requests            *prometheus.CounterVec
	attemptDuration     *prometheus.HistogramVec
	emergencyDispatches prometheus.Counter
}

// NewRoutingMetrics creates and registers routing collectors. A nil registry
// gets a private one, which keeps the collectors working but unscraped.
func NewRoutingMetrics(registry *prometheus.Registry) *RoutingMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	rm := &RoutingMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "routing",
				Name:      "attempts_total",
				Help:      "Dispatch attempts by provider, model, and outcome",
			},
			[]string{"provider", "model", "outcome"},
		),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "routing",
				Name:      "requests_total",
				Help:      "Routed requests by terminal status",
			},
			[]string{"status"},
		),

		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "meridian",
				Subsystem: "routing",
				Name:      "attempt_duration_seconds",
				Help:      "Latency of individual provider dispatch attempts",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"provider"},
		),

		emergencyDispatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "routing",
				Name:      "emergency_dispatches_total",
				Help:      "Dispatches made with every candidate breaker open",
			},
		),
	}

	registry.MustRegister(rm.attempts, rm.requests, rm.attemptDuration, rm.emergencyDispatches)
	return rm
}

// RecordAttempt records one dispatch attempt and its latency.
func (rm *RoutingMetrics) RecordAttempt(provider, model, outcome string, duration time.Duration) {
	rm.attempts.WithLabelValues(provider, model, outcome).Inc()
	rm.attemptDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordRequest records the terminal status of a routed request
// ("success", "all_failed", "permanent", "not_found").
func (rm *RoutingMetrics) RecordRequest(status string) {
	rm.requests.WithLabelValues(status).Inc()
}

// RecordEmergencyDispatch records an all-breakers-open bypass.
func (rm *RoutingMetrics) RecordEmergencyDispatch() {
	rm.emergencyDispatches.Inc()
}
