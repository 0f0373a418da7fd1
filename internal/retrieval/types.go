package retrieval

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/index/lexical"
	"github.com/rivergate/mediareef/internal/index/vector"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
)

// LexicalIndex is the narrow slice of the BM25 index (C7) the retriever
// depends on.
type LexicalIndex interface {
	Search(query string, k int, scope *string) []lexical.Match
}

// VectorIndex is the narrow slice of the HNSW index (C8) the retriever
// depends on.
type VectorIndex interface {
	Search(modelID string, query []float32, k int, scope *string) ([]vector.Match, error)
}

// ModelRegistry is the narrow slice of the embedding model registry (C9)
// the retriever depends on.
type ModelRegistry interface {
	ActiveModels(modality content.Modality) []content.EmbeddingModel
}

// Embedder encodes a query into a model's vector space. Implementations are
// expected to wrap a real embedding model client; no concrete
// implementation is specified here (mirrors the enricher Backend pattern).
type Embedder interface {
	EmbedText(ctx context.Context, model content.EmbeddingModel, text string) ([]float32, error)
	EmbedImage(ctx context.Context, model content.EmbeddingModel, imageBytes []byte) ([]float32, error)
	EmbedAudio(ctx context.Context, model content.EmbeddingModel, audioBytes []byte) ([]float32, error)
}

// SchedulerRunner is the narrow slice of the job scheduler (C6) the
// retriever depends on to gate query-encoding embedding calls.
type SchedulerRunner interface {
	TryAcquire(ctx context.Context, class scheduler.JobClass, wait time.Duration) (*scheduler.Permit, error)
}

// BlockMeta is the block-level metadata the retriever needs but that lives
// in durable storage (C12), not in the indices themselves.
type BlockMeta struct {
	ContentHash   string
	SegmentID     uuid.UUID
	Bbox          *content.BBox
	Time          *content.TimeRange
	ProjectScope  *string
	CreatedAt     time.Time
	URI           string
	ProviderChain []content.EnricherStep
	Text          string
	Confidence    *float64
	Modality      content.Modality
}

// MetaProvider resolves block metadata in bulk for a candidate set.
type MetaProvider interface {
	GetBlocksMeta(ctx context.Context, blockIDs []uuid.UUID) (map[uuid.UUID]BlockMeta, error)
}

// LogWriter persists the audit record (C12's search_logs table).
type LogWriter interface {
	WriteSearchLog(ctx context.Context, log content.SearchLog) error
}

// RankScore is one sub-query's contribution to a block's fused result,
// surfaced in citations for auditability.
type RankScore struct {
	Rank     int
	RawScore float64
}

// Citation is the synthesized output unit returned to consumers (C11).
type Citation struct {
	BlockID       uuid.UUID
	URI           string
	T0            *int64
	T1            *int64
	Bbox          *content.BBox
	ProviderChain []content.EnricherStep
	FusedScore    float64
	PerModality   map[string]RankScore
	Text          string
	Confidence    *float64
	Modality      content.Modality
}

// Result is the retriever's top-level response.
type Result struct {
	Citations []Citation
	Degraded  bool
	Log       content.SearchLog
}
