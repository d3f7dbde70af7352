package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"meridian-hq/meridian/pkg/breaker"
	"meridian-hq/meridian/pkg/catalog"
	"meridian-hq/meridian/pkg/ledger"
	"meridian-hq/meridian/pkg/providers"
	"meridian-hq/meridian/pkg/telemetry/metrics"
	"meridian-hq/meridian/pkg/telemetry/tracing"
)

// Router walks a model's candidate providers in order until one produces a
// response.
//
// # Example
//
//	r := routing.NewRouter(clients, cat, breakers, led, routing.DefaultConfig(), routing.Options{
//	    Logger: logger,
//	})
//
//	res, err := r.Route(ctx, "acct-1", requestID, "gpt-4o", req)
//	var exhausted *routing.AllProvidersFailedError
//	if errors.As(err, &exhausted) {
//	    // reply 502 with exhausted.Attempts
//	}
type Router struct {
	clients  map[string]providers.Client
	catalog  *catalog.Catalog
	breakers *breaker.Registry
	ledger   *ledger.Ledger
	config   Config
	logger   *slog.Logger
	stats    *Stats

	metrics        *metrics.RoutingMetrics
	catalogMetrics *metrics.CatalogMetrics
	ledgerMetrics  *metrics.LedgerMetrics
}

// Options configures optional router behavior.
type Options struct {
	// Logger receives routing reports (default slog.Default).
	Logger *slog.Logger

	// Metrics receives attempt and request counters (default: unregistered
	// no-op set).
	Metrics *metrics.RoutingMetrics

	// CatalogMetrics receives unmetered-dispatch counters.
	CatalogMetrics *metrics.CatalogMetrics

	// LedgerMetrics receives uncollected-debit counters.
	LedgerMetrics *metrics.LedgerMetrics
}

// NewRouter creates a router over the given provider clients. The clients
// map is keyed by provider name, matching catalog candidate providers.
func NewRouter(clients map[string]providers.Client, cat *catalog.Catalog, breakers *breaker.Registry, led *ledger.Ledger, cfg Config, opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRoutingMetrics(nil)
	}
	if opts.CatalogMetrics == nil {
		opts.CatalogMetrics = metrics.NewCatalogMetrics(nil)
	}
	if opts.LedgerMetrics == nil {
		opts.LedgerMetrics = metrics.NewLedgerMetrics(nil)
	}

	return &Router{
		clients:        clients,
		catalog:        cat,
		breakers:       breakers,
		ledger:         led,
		config:         cfg.withDefaults(),
		logger:         opts.Logger,
		stats:          NewStats(),
		metrics:        opts.Metrics,
		catalogMetrics: opts.CatalogMetrics,
		ledgerMetrics:  opts.LedgerMetrics,
	}
}

// Stats returns the router's live statistics tracker.
func (r *Router) Stats() *Stats {
	return r.stats
}

// Route resolves the client model id and dispatches with ordered failover.
// The response is billed to accountID after it is produced; a failed debit
// never withholds the response.
func (r *Router) Route(ctx context.Context, accountID, requestID, clientModelID string, req *providers.Request) (*Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "router.route", trace.WithAttributes(
		tracing.RequestID(requestID),
		tracing.ClientModelID(clientModelID),
	))
	defer span.End()

	r.stats.IncrementTotal()

	model, err := r.catalog.Resolve(clientModelID)
	if err != nil {
		r.metrics.RecordRequest("not_found")
		r.stats.IncrementErrors()
		return nil, err
	}
	span.SetAttributes(tracing.CanonicalModelID(model.ID))

	candidates := r.orderCandidates(model)

	var attempts []Attempt
	for _, cand := range candidates {
		verdict := r.breakers.Acquire(cand.Provider, cand.Model)
		if verdict == breaker.VerdictOpen {
			attempts = append(attempts, Attempt{
				Provider:        cand.Provider,
				ProviderModelID: cand.Model,
				Outcome:         OutcomeBreakerOpen,
			})
			r.metrics.RecordAttempt(cand.Provider, model.ID, OutcomeBreakerOpen, 0)
			continue
		}

		resp, attempt, sendErr := r.dispatch(ctx, span, model, cand, len(attempts)+1, req)

		if sendErr == nil {
			attempts = append(attempts, attempt)
			r.breakers.RecordSuccess(cand.Provider, cand.Model)
			cost, unmetered := r.settle(ctx, accountID, requestID, model, resp.Usage)
			r.metrics.RecordRequest("success")
			r.stats.IncrementProvider(cand.Provider)
			return &Result{
				Response:        resp,
				CanonicalID:     model.ID,
				Provider:        cand.Provider,
				ProviderModelID: cand.Model,
				Attempts:        attempts,
				CostMicros:      cost,
				Unmetered:       unmetered,
			}, nil
		}

		// A transport error while the inbound context is dead is the caller
		// hanging up, not the provider failing: stop the walk and leave the
		// breaker untouched (releasing the trial slot if this dispatch held
		// one).
		if sendErr.StatusCode == 0 && ctx.Err() != nil {
			attempt.Outcome = OutcomeCanceled
			attempts = append(attempts, attempt)
			if verdict == breaker.VerdictTrial {
				r.breakers.ReleaseTrial(cand.Provider, cand.Model)
			}
			r.metrics.RecordRequest("canceled")
			r.stats.IncrementErrors()
			return nil, fmt.Errorf("request canceled during dispatch to %q: %w", cand.Provider, ctx.Err())
		}

		attempts = append(attempts, attempt)

		if sendErr.Retryable() {
			r.breakers.RecordFailure(cand.Provider, cand.Model)
			r.stats.IncrementFailovers()
			continue
		}

		// Permanent failures (other 4xx) stop the walk: the request itself
		// is at fault and would fail identically everywhere. The provider
		// answered, so this resolves a half-open trial as a success rather
		// than stranding it.
		r.breakers.RecordSuccess(cand.Provider, cand.Model)
		r.metrics.RecordRequest("permanent")
		r.stats.IncrementErrors()
		return nil, fmt.Errorf("provider %q rejected request: %w", cand.Provider, sendErr)
	}

	if allBreakerOpen(attempts) && len(candidates) > 0 && r.config.EmergencyFallback {
		return r.emergencyDispatch(ctx, span, accountID, requestID, model, candidates[0], attempts, req)
	}

	r.metrics.RecordRequest("all_failed")
	r.stats.IncrementErrors()
	return nil, &AllProvidersFailedError{Model: model.ID, Attempts: attempts}
}

// dispatch runs one provider attempt under the per-attempt timeout.
func (r *Router) dispatch(ctx context.Context, span trace.Span, model *catalog.CanonicalModel, cand catalog.Candidate, attemptNum int, req *providers.Request) (*providers.Response, Attempt, *providers.SendError) {
	client, ok := r.clients[cand.Provider]
	if !ok {
		// A catalog candidate without a configured client behaves like an
		// unreachable provider.
		err := providers.NewTransportError(cand.Provider, fmt.Errorf("no client configured for provider %q", cand.Provider))
		return nil, Attempt{
			Provider:        cand.Provider,
			ProviderModelID: cand.Model,
			Outcome:         OutcomeRetryable,
		}, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.config.AttemptTimeout)
	defer cancel()

	start := time.Now()
	resp, sendErr := client.Send(attemptCtx, cand.Model, req)
	latency := time.Since(start)

	attempt := Attempt{
		Provider:        cand.Provider,
		ProviderModelID: cand.Model,
		Latency:         latency,
	}
	switch {
	case sendErr == nil:
		attempt.Outcome = OutcomeSuccess
	case sendErr.Retryable():
		attempt.Outcome = OutcomeRetryable
		attempt.StatusCode = sendErr.StatusCode
	default:
		attempt.Outcome = OutcomePermanent
		attempt.StatusCode = sendErr.StatusCode
	}

	span.AddEvent("dispatch", trace.WithAttributes(
		tracing.Provider(cand.Provider),
		tracing.ProviderModelID(cand.Model),
		tracing.Attempt(attemptNum),
		tracing.Outcome(attempt.Outcome),
	))
	r.metrics.RecordAttempt(cand.Provider, model.ID, attempt.Outcome, latency)

	if sendErr != nil {
		r.logger.Warn("provider dispatch failed",
			"provider", cand.Provider,
			"model", model.ID,
			"status", sendErr.StatusCode,
			"retryable", sendErr.Retryable(),
			"error", sendErr)
	}

	return resp, attempt, sendErr
}

// emergencyDispatch pushes one request through the first candidate even
// though every breaker is open. It keeps a fully-dark model reachable; the
// breaker still sees the result.
func (r *Router) emergencyDispatch(ctx context.Context, span trace.Span, accountID, requestID string, model *catalog.CanonicalModel, cand catalog.Candidate, attempts []Attempt, req *providers.Request) (*Result, error) {
	r.logger.Warn("all breakers open, emergency dispatch",
		"model", model.ID,
		"provider", cand.Provider)
	r.metrics.RecordEmergencyDispatch()
	r.stats.IncrementEmergency()

	resp, attempt, sendErr := r.dispatch(ctx, span, model, cand, len(attempts)+1, req)
	if sendErr == nil {
		attempt.Outcome = OutcomeEmergency
		attempts = append(attempts, attempt)
		r.breakers.RecordSuccess(cand.Provider, cand.Model)
		cost, unmetered := r.settle(ctx, accountID, requestID, model, resp.Usage)
		r.metrics.RecordRequest("success")
		r.stats.IncrementProvider(cand.Provider)
		return &Result{
			Response:        resp,
			CanonicalID:     model.ID,
			Provider:        cand.Provider,
			ProviderModelID: cand.Model,
			Attempts:        attempts,
			CostMicros:      cost,
			Unmetered:       unmetered,
			Emergency:       true,
		}, nil
	}

	attempts = append(attempts, attempt)
	if sendErr.Retryable() {
		r.breakers.RecordFailure(cand.Provider, cand.Model)
	}
	r.metrics.RecordRequest("all_failed")
	r.stats.IncrementErrors()
	return nil, &AllProvidersFailedError{Model: model.ID, Attempts: attempts}
}

// settle bills a delivered response. The response is already committed, so
// every failure here is absorbed: logged, counted, never returned.
func (r *Router) settle(ctx context.Context, accountID, requestID string, model *catalog.CanonicalModel, usage providers.Usage) (int64, bool) {
	if model.DefaultPriced() {
		r.logger.Warn("model is unmetered, skipping debit",
			"model", model.ID,
			"request_id", requestID)
		r.catalogMetrics.RecordUnmeteredDispatch(model.ID)
		return 0, true
	}

	cost := model.Pricing.Cost(usage.InputTokens, usage.OutputTokens)
	if cost == 0 {
		return 0, false
	}

	if _, err := r.ledger.Debit(ctx, accountID, cost, "inference", requestID); err != nil {
		reason := "error"
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			reason = "insufficient_funds"
		case errors.Is(err, ledger.ErrConflict):
			reason = "conflict"
		case errors.Is(err, ledger.ErrAccountNotFound):
			reason = "account_not_found"
		}
		r.logger.Warn("response delivered but debit failed",
			"account", accountID,
			"request_id", requestID,
			"cost_micros", cost,
			"reason", reason,
			"error", err)
		r.ledgerMetrics.RecordUncollectedDebit(reason)
		return 0, false
	}

	return cost, false
}

// orderCandidates applies the provider pin for the model, if any. The
// pinned provider moves to the front; everything else keeps catalog order.
func (r *Router) orderCandidates(model *catalog.CanonicalModel) []catalog.Candidate {
	pinned, ok := r.config.ProviderPins[model.ID]
	if !ok {
		return model.Candidates
	}

	ordered := make([]catalog.Candidate, 0, len(model.Candidates))
	rest := make([]catalog.Candidate, 0, len(model.Candidates))
	for _, c := range model.Candidates {
		if c.Provider == pinned {
			ordered = append(ordered, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(ordered, rest...)
}

func allBreakerOpen(attempts []Attempt) bool {
	if len(attempts) == 0 {
		return false
	}
	for _, a := range attempts {
		if a.Outcome != OutcomeBreakerOpen {
			return false
		}
	}
	return true
}
