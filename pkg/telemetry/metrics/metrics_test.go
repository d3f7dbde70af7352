package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Collector Registration Tests
// ============================================================================

func TestCollectorsRegisterTogether(t *testing.T) {
	registry := prometheus.NewRegistry()

	// All four collector sets must coexist on one registry.
	NewRoutingMetrics(registry)
	NewBreakerMetrics(registry)
	NewCatalogMetrics(registry)
	NewLedgerMetrics(registry)
}

func TestNilRegistryIsSafe(t *testing.T) {
	rm := NewRoutingMetrics(nil)
	rm.RecordAttempt("openai", "gpt-4o", "success", 250*time.Millisecond)
	rm.RecordRequest("success")
}

// ============================================================================
// Recording Tests
// ============================================================================

func TestRoutingMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	rm := NewRoutingMetrics(registry)

	rm.RecordAttempt("openai", "gpt-4o", "retryable_error", 100*time.Millisecond)
	rm.RecordAttempt("bedrock", "claude-sonnet", "success", 200*time.Millisecond)
	rm.RecordEmergencyDispatch()

	if got := testutil.ToFloat64(rm.attempts.WithLabelValues("openai", "gpt-4o", "retryable_error")); got != 1 {
		t.Errorf("attempts counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.emergencyDispatches); got != 1 {
		t.Errorf("emergency counter = %v, want 1", got)
	}
}

func TestLedgerMetricsDebitAmount(t *testing.T) {
	registry := prometheus.NewRegistry()
	lm := NewLedgerMetrics(registry)

	lm.RecordDebit("ok", 1500)
	lm.RecordDebit("insufficient_funds", 900)

	if got := testutil.ToFloat64(lm.debitedMicros); got != 1500 {
		t.Errorf("debitedMicros = %v, want 1500 (failed debits must not count)", got)
	}
}

func TestBreakerMetricsState(t *testing.T) {
	registry := prometheus.NewRegistry()
	bm := NewBreakerMetrics(registry)

	bm.SetState("openai", "gpt-4o", 2)
	if got := testutil.ToFloat64(bm.state.WithLabelValues("openai", "gpt-4o")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
}

// ============================================================================
// Exposition Tests
// ============================================================================

func TestHandlerServesExposition(t *testing.T) {
	registry := prometheus.NewRegistry()
	cm := NewCatalogMetrics(registry)
	cm.SetCatalogSize(12, 3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "meridian_catalog_default_priced_models 3") {
		t.Errorf("exposition missing default-priced gauge:\n%s", body)
	}
}
