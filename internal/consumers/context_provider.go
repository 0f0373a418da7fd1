// Package consumers implements the two downstream-facing helpers in spec
// component C11 (ContextProvider, EvidenceCollector), both built directly on
// top of the Multimodal Retriever (C10). The token-budget greedy admission
// follows the same discipline as the teacher's renderDocsBudgeted/assembleX
// helpers in internal/modules/chat/steps/context_plan.go: sort best-first,
// admit while under budget, stop at the first block that would exceed it.
package consumers

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/retrieval"
)

// ContextBudget bounds a gather_context call per spec §4.11.
type ContextBudget struct {
	K         int
	MaxTokens int
	Scope     *string
}

// ContextBlock is one admitted block of retrieved context.
type ContextBlock struct {
	Text       string
	Confidence *float64
	Citation   retrieval.Citation
	Modality   content.Modality
}

// ContextProvider answers "what do we know about this topic right now,"
// bounded by a token budget, for consumption by a downstream prompt
// assembler.
type ContextProvider struct {
	retriever *retrieval.Retriever
}

func NewContextProvider(r *retrieval.Retriever) *ContextProvider {
	return &ContextProvider{retriever: r}
}

// GatherContext runs a Hybrid query for topic and greedily admits citations
// in fused-score order until the next block would exceed budget.MaxTokens.
// The retriever has already deduplicated its result set, satisfying the
// spec's "deduplication is mandatory before budget accounting."
func (p *ContextProvider) GatherContext(ctx context.Context, topic string, budget ContextBudget) ([]ContextBlock, error) {
	k := budget.K
	if k <= 0 {
		k = 10
	}
	res, err := p.retriever.Search(ctx, retrieval.Query{
		Text:      &topic,
		QueryType: retrieval.QueryHybrid,
		K:         k,
		Scope:     budget.Scope,
	})
	if err != nil {
		return nil, err
	}

	maxTokens := budget.MaxTokens
	blocks := make([]ContextBlock, 0, len(res.Citations))
	used := 0
	for _, c := range res.Citations {
		t := estimateTokens(c.Text)
		if maxTokens > 0 && used+t > maxTokens {
			break
		}
		blocks = append(blocks, ContextBlock{
			Text:       c.Text,
			Confidence: c.Confidence,
			Citation:   c,
			Modality:   c.Modality,
		})
		used += t
	}
	return blocks, nil
}

// estimateTokens is the same ~4-chars-per-token heuristic the teacher uses
// in internal/modules/chat/steps/util.go, avoiding a real tokenizer
// dependency for a budget check that only needs to be roughly right.
func estimateTokens(s string) int {
	r := []rune(s)
	return int(math.Ceil(float64(len(r)) / 4.0))
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "in": {}, "on": {}, "to": {}, "for": {},
	"and": {}, "or": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"this": {}, "that": {}, "it": {}, "with": {}, "as": {}, "by": {}, "at": {}, "from": {},
	"its": {}, "their": {}, "which": {}, "who": {}, "what": {}, "does": {}, "do": {},
}

// salientKeywords tokenizes like the lexical index (letters/digits, lowered)
// and keeps the longest unique non-stopword tokens, as a cheap stand-in for
// the keyword-extraction model prompt the teacher otherwise sends to an LLM
// (internal/modules/chat/steps/prompts.go's promptContextualizeQuery schema)
// — no LLM round trip is warranted just to pick search-query variants.
func salientKeywords(text string, max int) []string {
	var tokens []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, buf.String())
			buf.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			buf.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	seen := make(map[string]struct{})
	var kept []string
	for _, t := range tokens {
		if len(t) < 4 {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		kept = append(kept, t)
	}
	// Longest first: longer tokens tend to be the more specific, salient
	// terms (names, technical vocabulary) in a short claim.
	for i := 1; i < len(kept); i++ {
		for j := i; j > 0 && len(kept[j]) > len(kept[j-1]); j-- {
			kept[j], kept[j-1] = kept[j-1], kept[j]
		}
	}
	if len(kept) > max {
		kept = kept[:max]
	}
	return kept
}
