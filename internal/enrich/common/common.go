// Package common defines the shared enricher contract and the harness that
// drives it (spec component C5): role-gated dispatch, scheduler admission,
// breaker-wrapped invocation, and append-only provenance recording, all
// decoupled from any particular backend (Vision/ASR/Entity/VisualCaption are
// polymorphic implementations of Enricher).
package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
	"github.com/rivergate/mediareef/internal/platform/breaker"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/platform/otelx"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// ExtractedEntity is one named-entity output. Per spec §4.5, raw PII values
// are never persisted: only a coarse category and a hash of the normalized
// value survive.
type ExtractedEntity struct {
	Category  string
	ValueHash string
}

// EnrichmentResult is what one successful Enricher.Enrich call produces.
// Every field is optional; an enricher sets only what it knows how to
// compute.
type EnrichmentResult struct {
	OCRConfidence *float64
	ExtractedText string
	SpeechTurns   []*content.SpeechTurn
	Entities      []ExtractedEntity
	Caption       string
	Tags          []string
}

// Enricher is the common contract every enricher variant implements (spec
// §4.5): a fixed job class, a role allow-list, and a per-call timeout.
type Enricher interface {
	ID() string
	JobClass() scheduler.JobClass
	AllowedRoles() []content.Role
	Timeout() time.Duration
	Enrich(ctx context.Context, block *content.Block) (EnrichmentResult, error)
}

func roleAllowed(role content.Role, allowed []content.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// Harness runs the per-block enrichment algorithm of spec §4.5 across a
// fixed set of enrichers, owning one Breaker per enricher (shared across all
// concurrent callers, per §4.4 "one breaker instance per enricher").
type Harness struct {
	log       *logger.Logger
	scheduler *scheduler.Scheduler
	enrichers []Enricher
	clock     func() time.Time
	admitWait time.Duration

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

func New(log *logger.Logger, sched *scheduler.Scheduler, enrichers []Enricher, admitWait time.Duration) *Harness {
	h := &Harness{
		log:       log.With("component", "enrich.Harness"),
		scheduler: sched,
		enrichers: enrichers,
		clock:     time.Now,
		admitWait: admitWait,
		breakers:  make(map[string]*breaker.Breaker, len(enrichers)),
	}
	for _, e := range enrichers {
		h.breakers[e.ID()] = breaker.New(e.ID(), breaker.Config{})
	}
	return h
}

// EnrichBlock runs every applicable enricher against block in registration
// order, returning the provenance chain extended with one EnricherStep per
// applicable enricher and the successful outputs. A block with no applicable
// enrichers is returned unchanged, still indexable by its original content
// (spec §4.5 step 5).
func (h *Harness) EnrichBlock(ctx context.Context, block *content.Block, prov content.Provenance) (content.Provenance, []EnrichmentResult) {
	var results []EnrichmentResult

	for _, e := range h.enrichers {
		if !roleAllowed(block.Role, e.AllowedRoles()) {
			continue
		}

		started := h.clock()
		permit, err := h.scheduler.TryAcquire(ctx, e.JobClass(), h.admitWait)
		if err != nil {
			prov = prov.Append(content.EnricherStep{
				EnricherID: e.ID(), StartedAt: started, FinishedAt: h.clock(),
				Status: content.EnricherSkippedBackpressure,
			})
			continue
		}

		status, result := h.invoke(ctx, e, block)
		permit.Release(status == content.EnricherOK)

		prov = prov.Append(content.EnricherStep{
			EnricherID: e.ID(), StartedAt: started, FinishedAt: h.clock(), Status: status,
		})
		if status == content.EnricherOK {
			results = append(results, result)
		}
	}

	return prov, results
}

func (h *Harness) invoke(ctx context.Context, e Enricher, block *content.Block) (status content.EnricherStatus, result EnrichmentResult) {
	ctx, span := otelx.StartEnrich(ctx, e.ID(), block.ID.String())
	defer func() {
		var err error
		if status == content.EnricherFailed || status == content.EnricherTimedOut {
			err = errors.New(string(status))
		}
		otelx.End(span, &err)
	}()

	h.mu.Lock()
	br := h.breakers[e.ID()]
	h.mu.Unlock()

	invokeErr := br.Invoke(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.Timeout())
		defer cancel()
		r, err := e.Enrich(callCtx, block)
		result = r
		return err
	})

	if invokeErr == nil {
		return content.EnricherOK, result
	}

	var breakerOpen *errs.BreakerOpen
	switch {
	case errors.As(invokeErr, &breakerOpen):
		return content.EnricherBreakerOpen, result
	case errors.Is(invokeErr, context.DeadlineExceeded):
		return content.EnricherTimedOut, result
	case errors.Is(invokeErr, context.Canceled):
		return content.EnricherCancelled, result
	default:
		return content.EnricherFailed, result
	}
}
