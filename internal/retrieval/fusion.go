package retrieval

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
)

const defaultRRFConstant = 60.0

// rankedList is one sub-query's result, already sorted best-first.
type rankedList struct {
	key    string // model_id, or "lexical"
	blocks []content.ScoredBlock
}

// fuse combines rankedLists into a single fused score per block, per
// spec §4.10. It also returns, per block, the best raw score seen across
// any list (used for the tie-break) and the per-list rank/score detail
// (used for citations and the audit log).
func fuse(method FusionMethod, lists []rankedList, weights map[string]float64, rrfConstant float64) (fused map[uuid.UUID]float64, bestRaw map[uuid.UUID]float64, detail map[uuid.UUID]map[string]RankScore, err error) {
	fused = make(map[uuid.UUID]float64)
	bestRaw = make(map[uuid.UUID]float64)
	detail = make(map[uuid.UUID]map[string]RankScore)

	recordDetail := func(id uuid.UUID, key string, rank int, raw float64) {
		if detail[id] == nil {
			detail[id] = make(map[string]RankScore)
		}
		detail[id][key] = RankScore{Rank: rank, RawScore: raw}
		if raw > bestRaw[id] {
			bestRaw[id] = raw
		}
	}

	switch method {
	case FusionWeightedSum:
		if err := validateWeights(lists, weights); err != nil {
			return nil, nil, nil, err
		}
		for _, l := range lists {
			norm := minMaxNormalize(l.blocks)
			w := weights[l.key]
			for i, b := range l.blocks {
				recordDetail(b.BlockID, l.key, i+1, b.Score)
				fused[b.BlockID] += w * norm[i]
			}
		}
	case FusionCombSUM:
		for _, l := range lists {
			norm := minMaxNormalize(l.blocks)
			for i, b := range l.blocks {
				recordDetail(b.BlockID, l.key, i+1, b.Score)
				fused[b.BlockID] += norm[i]
			}
		}
	case FusionRRF, "":
		c := rrfConstant
		if c <= 0 {
			c = defaultRRFConstant
		}
		for _, l := range lists {
			for i, b := range l.blocks {
				rank := i + 1
				recordDetail(b.BlockID, l.key, rank, b.Score)
				fused[b.BlockID] += 1.0 / (float64(rank) + c)
			}
		}
	default:
		return nil, nil, nil, fmt.Errorf("unknown fusion method %q", method)
	}

	return fused, bestRaw, detail, nil
}

func validateWeights(lists []rankedList, weights map[string]float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("weighted_sum fusion requires non-empty weights")
	}
	var sum float64
	for _, l := range lists {
		w, ok := weights[l.key]
		if !ok {
			return fmt.Errorf("weighted_sum fusion missing weight for %q", l.key)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("weighted_sum weights must sum to 1, got %f", sum)
	}
	return nil
}

func minMaxNormalize(blocks []content.ScoredBlock) []float64 {
	out := make([]float64, len(blocks))
	if len(blocks) == 0 {
		return out
	}
	min, max := blocks[0].Score, blocks[0].Score
	for _, b := range blocks {
		if b.Score < min {
			min = b.Score
		}
		if b.Score > max {
			max = b.Score
		}
	}
	span := max - min
	for i, b := range blocks {
		if span == 0 {
			out[i] = 1.0
			continue
		}
		out[i] = (b.Score - min) / span
	}
	return out
}
