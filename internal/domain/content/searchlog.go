package content

import (
	"time"

	"github.com/google/uuid"
)

// PerModalityResult captures one sub-query's raw ranked candidates for
// audit purposes.
type PerModalityResult struct {
	ModelID string
	Ranked  []ScoredBlock
}

// ScoredBlock pairs a block id with a raw, modality-local score.
type ScoredBlock struct {
	BlockID uuid.UUID
	Score   float64
}

// SearchLog is the audit record written for every retrieval query.
type SearchLog struct {
	ID                 uuid.UUID
	Ts                 time.Time
	QueryType          string
	ScopeFilter        *string
	PerModalityResults []PerModalityResult
	FusedRanking       []ScoredBlock
	CitationsReturned  []uuid.UUID
	ConsumerID         string
}
