package consumers

import (
	"context"
	"errors"

	"github.com/google/uuid"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/rivergate/mediareef/internal/retrieval"
)

// Evidence is one deduplicated support item for a claim.
type Evidence struct {
	Citation        retrieval.Citation
	SupportStrength float64
}

// EvidenceCollector answers "what backs this claim," per spec §4.11: it
// issues the claim verbatim plus a handful of salient-keyword variants as
// separate sub-queries and unions the results into one flat list with a
// single block_id surviving only once (its highest fused score wins). The
// results are not grouped by modality; each Citation carries its own.
type EvidenceCollector struct {
	retriever *retrieval.Retriever
}

func NewEvidenceCollector(r *retrieval.Retriever) *EvidenceCollector {
	return &EvidenceCollector{retriever: r}
}

const maxKeywordVariants = 3

// CollectEvidence runs the claim verbatim and up to maxKeywordVariants
// salient-keyword sub-queries, then unions and deduplicates the citations
// by block id, keeping the highest fused_score seen for each.
func (e *EvidenceCollector) CollectEvidence(ctx context.Context, claim string, scope *string) ([]Evidence, error) {
	queries := []string{claim}
	for _, kw := range salientKeywords(claim, maxKeywordVariants) {
		queries = append(queries, kw)
	}

	best := make(map[uuid.UUID]retrieval.Citation)
	for _, q := range queries {
		text := q
		res, err := e.retriever.Search(ctx, retrieval.Query{
			Text:      &text,
			QueryType: retrieval.QueryHybrid,
			K:         10,
			Scope:     scope,
		})
		if err != nil {
			var qf *errs.QueueFull
			if errors.As(err, &qf) {
				// This variant's embedding permits were denied; the other
				// sub-queries may still succeed, so keep going rather than
				// failing the whole claim over one exhausted variant.
				continue
			}
			return nil, err
		}
		for _, c := range res.Citations {
			if cur, ok := best[c.BlockID]; !ok || c.FusedScore > cur.FusedScore {
				best[c.BlockID] = c
			}
		}
	}

	out := make([]Evidence, 0, len(best))
	for _, c := range best {
		out = append(out, Evidence{Citation: c, SupportStrength: c.FusedScore})
	}
	return out, nil
}
