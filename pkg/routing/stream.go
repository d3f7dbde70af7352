package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"meridian-hq/meridian/pkg/breaker"
	"meridian-hq/meridian/pkg/catalog"
	"meridian-hq/meridian/pkg/providers"
	"meridian-hq/meridian/pkg/telemetry/tracing"
)

// RouteStream resolves the client model id and establishes a stream with
// ordered failover. Failover stops the moment a provider hands back a
// stream: from then on the response is committed to that provider, and a
// mid-stream failure surfaces as StreamInterruptedError rather than a
// retry.
//
// Billing happens when the stream ends cleanly, from the usage carried on
// the final chunk. An interrupted stream is never billed.
func (r *Router) RouteStream(ctx context.Context, accountID, requestID, clientModelID string, req *providers.Request) (*StreamResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "router.route_stream", trace.WithAttributes(
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

		result, attempt, sendErr := r.openStream(ctx, accountID, requestID, model, cand, req)

		if sendErr == nil {
			attempts = append(attempts, attempt)
			result.Attempts = attempts
			r.stats.IncrementProvider(cand.Provider)
			return result, nil
		}

		// Caller hung up mid-establishment: not a provider failure. Release
		// the trial slot if this dispatch held one and stop the walk.
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

		// The provider answered; resolve a half-open trial as a success
		// rather than stranding it.
		r.breakers.RecordSuccess(cand.Provider, cand.Model)
		r.metrics.RecordRequest("permanent")
		r.stats.IncrementErrors()
		return nil, fmt.Errorf("provider %q rejected request: %w", cand.Provider, sendErr)
	}

	if allBreakerOpen(attempts) && len(candidates) > 0 && r.config.EmergencyFallback {
		cand := candidates[0]
		r.logger.Warn("all breakers open, emergency stream dispatch",
			"model", model.ID,
			"provider", cand.Provider)
		r.metrics.RecordEmergencyDispatch()
		r.stats.IncrementEmergency()

		result, attempt, sendErr := r.openStream(ctx, accountID, requestID, model, cand, req)
		if sendErr == nil {
			attempt.Outcome = OutcomeEmergency
			result.Attempts = append(attempts, attempt)
			result.Emergency = true
			r.stats.IncrementProvider(cand.Provider)
			return result, nil
		}
		attempts = append(attempts, attempt)
		if sendErr.Retryable() {
			r.breakers.RecordFailure(cand.Provider, cand.Model)
		}
	}

	r.metrics.RecordRequest("all_failed")
	r.stats.IncrementErrors()
	return nil, &AllProvidersFailedError{Model: model.ID, Attempts: attempts}
}

// openStream attempts to establish a stream with one candidate. The
// per-attempt timeout only covers stream establishment; once the stream
// exists it lives on the caller's context.
func (r *Router) openStream(ctx context.Context, accountID, requestID string, model *catalog.CanonicalModel, cand catalog.Candidate, req *providers.Request) (*StreamResult, Attempt, *providers.SendError) {
	client, ok := r.clients[cand.Provider]
	if !ok {
		err := providers.NewTransportError(cand.Provider, fmt.Errorf("no client configured for provider %q", cand.Provider))
		return nil, Attempt{
			Provider:        cand.Provider,
			ProviderModelID: cand.Model,
			Outcome:         OutcomeRetryable,
		}, err
	}

	start := time.Now()
	stream, sendErr := client.SendStream(ctx, cand.Model, req)
	latency := time.Since(start)

	attempt := Attempt{
		Provider:        cand.Provider,
		ProviderModelID: cand.Model,
		Latency:         latency,
	}
	if sendErr != nil {
		if sendErr.Retryable() {
			attempt.Outcome = OutcomeRetryable
		} else {
			attempt.Outcome = OutcomePermanent
		}
		attempt.StatusCode = sendErr.StatusCode
		r.metrics.RecordAttempt(cand.Provider, model.ID, attempt.Outcome, latency)
		r.logger.Warn("provider stream dispatch failed",
			"provider", cand.Provider,
			"model", model.ID,
			"status", sendErr.StatusCode,
			"error", sendErr)
		return nil, attempt, sendErr
	}

	attempt.Outcome = OutcomeSuccess
	r.metrics.RecordAttempt(cand.Provider, model.ID, OutcomeSuccess, latency)

	// Billing must survive the request context being cancelled right after
	// the last chunk.
	settleCtx := context.WithoutCancel(ctx)

	return &StreamResult{
		Stream: &meteredStream{
			inner:     stream,
			router:    r,
			settleCtx: settleCtx,
			accountID: accountID,
			requestID: requestID,
			model:     model,
			provider:  cand.Provider,
			modelID:   cand.Model,
		},
		CanonicalID:     model.ID,
		Provider:        cand.Provider,
		ProviderModelID: cand.Model,
	}, attempt, nil
}

// meteredStream wraps a provider stream with breaker bookkeeping and
// end-of-stream billing.
type meteredStream struct {
	inner     providers.Stream
	router    *Router
	settleCtx context.Context
	accountID string
	requestID string
	model     *catalog.CanonicalModel
	provider  string
	modelID   string

	mu    sync.Mutex
	usage *providers.Usage
	done  bool
}

// Recv forwards chunks, capturing usage from the final chunk. A clean EOF
// records breaker success and bills the stream; any other error records a
// breaker failure and surfaces as StreamInterruptedError.
func (s *meteredStream) Recv() (*providers.Chunk, error) {
	chunk, err := s.inner.Recv()
	if err == nil {
		if chunk.Usage != nil {
			s.mu.Lock()
			s.usage = chunk.Usage
			s.mu.Unlock()
		}
		return chunk, nil
	}

	if errors.Is(err, io.EOF) {
		s.finish(true)
		return nil, io.EOF
	}

	s.finish(false)
	return nil, &StreamInterruptedError{Provider: s.provider, Err: err}
}

// Close closes the underlying stream. A stream abandoned before EOF is not
// billed, but it still resolves the breaker as a success: the provider was
// serving fine when the caller walked away, and a half-open trial must
// never be left dangling.
func (s *meteredStream) Close() error {
	s.mu.Lock()
	abandoned := !s.done
	s.done = true
	s.mu.Unlock()

	if abandoned {
		s.router.breakers.RecordSuccess(s.provider, s.modelID)
		s.router.metrics.RecordRequest("stream_abandoned")
		s.router.logger.Debug("stream abandoned before end",
			"provider", s.provider,
			"model", s.model.ID,
			"request_id", s.requestID)
	}
	return s.inner.Close()
}

// finish settles the stream exactly once.
func (s *meteredStream) finish(clean bool) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	usage := s.usage
	s.mu.Unlock()

	if !clean {
		s.router.breakers.RecordFailure(s.provider, s.modelID)
		s.router.metrics.RecordRequest("stream_interrupted")
		s.router.logger.Warn("stream interrupted mid-flight",
			"provider", s.provider,
			"model", s.model.ID,
			"request_id", s.requestID)
		return
	}

	s.router.breakers.RecordSuccess(s.provider, s.modelID)
	s.router.metrics.RecordRequest("success")

	if usage == nil {
		// No usage on the final chunk means there is nothing to bill
		// against; the provider owes us that data.
		s.router.logger.Warn("stream ended without usage, skipping debit",
			"provider", s.provider,
			"model", s.model.ID,
			"request_id", s.requestID)
		return
	}
	s.router.settle(s.settleCtx, s.accountID, s.requestID, s.model, *usage)
}
