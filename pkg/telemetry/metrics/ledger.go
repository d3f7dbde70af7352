package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks credit ledger activity.
//
// Metrics:
//   - meridian_ledger_debits_total: debit attempts by result
//   - meridian_ledger_debited_micros_total: total amount debited, in micro-dollars
//   - meridian_ledger_cas_retries_total: version-conflict retries inside Debit
//   - meridian_ledger_uncollected_debits_total: successful requests whose debit failed
type LedgerMetrics struct {
	debits            *prometheus.CounterVec
	debitedMicros     prometheus.Counter
	casRetries        prometheus.Counter
	uncollectedDebits *prometheus.CounterVec
}

// NewLedgerMetrics creates and registers ledger collectors.
func NewLedgerMetrics(registry *prometheus.Registry) *LedgerMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	lm := &LedgerMetrics{
		debits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "ledger",
				Name:      "debits_total",
				Help:      "Debit attempts by result (ok, insufficient_funds, conflict, error)",
			},
			[]string{"result"},
		),

		debitedMicros: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "ledger",
				Name:      "debited_micros_total",
				Help:      "Total amount debited in micro-dollars",
			},
		),

		casRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "ledger",
				Name:      "cas_retries_total",
				Help:      "Version-conflict retries performed inside Debit",
			},
		),

		uncollectedDebits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meridian",
				Subsystem: "ledger",
				Name:      "uncollected_debits_total",
				Help:      "Completed requests whose post-hoc debit could not be collected",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(lm.debits, lm.debitedMicros, lm.casRetries, lm.uncollectedDebits)
	return lm
}

// RecordDebit records a debit attempt and, when successful, the amount.
func (lm *LedgerMetrics) RecordDebit(result string, amountMicros int64) {
	lm.debits.WithLabelValues(result).Inc()
	if result == "ok" && amountMicros > 0 {
		lm.debitedMicros.Add(float64(amountMicros))
	}
}

// RecordCASRetry records one version-conflict retry.
func (lm *LedgerMetrics) RecordCASRetry() {
	lm.casRetries.Inc()
}

// RecordUncollectedDebit records a completed request that could not be
// billed ("insufficient_funds", "conflict", "error").
func (lm *LedgerMetrics) RecordUncollectedDebit(reason string) {
	lm.uncollectedDebits.WithLabelValues(reason).Inc()
}
