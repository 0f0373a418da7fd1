package content

import (
	"time"

	"github.com/google/uuid"
)

// EnricherStatus enumerates the outcomes an enricher invocation can record
// in a block's provenance chain.
type EnricherStatus string

const (
	EnricherOK                 EnricherStatus = "ok"
	EnricherFailed             EnricherStatus = "failed"
	EnricherBreakerOpen        EnricherStatus = "breaker_open"
	EnricherSkippedBackpressure EnricherStatus = "skipped_backpressure"
	EnricherTimedOut           EnricherStatus = "timed_out"
	EnricherCancelled          EnricherStatus = "cancelled"
)

// EnricherStep is one append-only entry in a block's enricher chain.
type EnricherStep struct {
	EnricherID string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     EnricherStatus
}

// Provenance tracks, per block, the ingestor that produced it and the
// ordered chain of enrichers that touched it. It is append-only: callers
// must never mutate or remove existing EnricherChain entries.
type Provenance struct {
	BlockID       uuid.UUID
	IngestorID    string
	EnricherChain []EnricherStep
	SourceURI     string
	SourceSHA256  string
}

// Append returns a new Provenance with step appended, leaving the receiver
// untouched (append-only discipline enforced at the type level).
func (p Provenance) Append(step EnricherStep) Provenance {
	chain := make([]EnricherStep, len(p.EnricherChain), len(p.EnricherChain)+1)
	copy(chain, p.EnricherChain)
	chain = append(chain, step)
	p.EnricherChain = chain
	return p
}
