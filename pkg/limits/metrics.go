package limits

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for the limits package.
type Metrics struct {
	// Admission checks by result
	admissions *prometheus.CounterVec

	// Denials broken down by limiting dimension
	denials *prometheus.CounterVec

	// Config lookups that fell back to the built-in default
	configFallbacks prometheus.Counter

	// Keys currently holding limiter state
	activeKeys prometheus.Gauge

	// Admission check latency
	checkDuration prometheus.Histogram
}

// NewMetrics creates the limits collectors registered against reg. A nil
// registerer yields working but unregistered collectors, which keeps tests
// free of global registry state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		admissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_limits_admissions_total",
				Help: "Total admission checks by result",
			},
			[]string{"result"},
		),

		denials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_limits_denials_total",
				Help: "Total admission denials by limiting dimension",
			},
			[]string{"reason"},
		),

		configFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "meridian_limits_config_fallbacks_total",
				Help: "Config lookups that fell back to the default limits",
			},
		),

		activeKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "meridian_limits_active_keys",
				Help: "Keys currently holding limiter state",
			},
		),

		checkDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "meridian_limits_check_duration_seconds",
				Help:    "Duration of admission checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
	}
}

// RecordAdmission records one admission check and, when denied, the
// dimension that denied it.
func (m *Metrics) RecordAdmission(allowed bool, reason string) {
	result := "allowed"
	if !allowed {
		result = "denied"
		m.denials.WithLabelValues(reason).Inc()
	}
	m.admissions.WithLabelValues(result).Inc()
}

// RecordConfigFallback records a degraded-mode config lookup.
func (m *Metrics) RecordConfigFallback() {
	m.configFallbacks.Inc()
}

// AddActiveKeys adjusts the active key gauge.
func (m *Metrics) AddActiveKeys(delta int) {
	m.activeKeys.Add(float64(delta))
}

// ObserveCheckDuration records the latency of one admission check.
func (m *Metrics) ObserveCheckDuration(d time.Duration) {
	m.checkDuration.Observe(d.Seconds())
}
