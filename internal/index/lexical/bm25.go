// Package lexical implements the BM25 full-text index (spec component C7):
// per-document length-normalized term scoring, explicit add/commit
// boundaries, and tombstone-based deletion. No inverted-index library in
// the dependency pack exposes this contract directly — see DESIGN.md for
// why `blevesearch/bleve` (the one full-text engine referenced anywhere in
// the pack) was not a fit, and why this is hand-written against the
// standard library instead.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
)

// Config holds the BM25 tunables named in spec §4.7.
type Config struct {
	K1 float64
	B  float64
}

func (c Config) withDefaults() Config {
	if c.K1 <= 0 {
		c.K1 = 1.5
	}
	if c.B <= 0 {
		c.B = 0.75
	}
	return c
}

type posting struct {
	blockID  uuid.UUID
	termFreq int
	version  int64
}

type docInfo struct {
	length     int
	scope      *string
	tombstoned bool
	version    int64
}

// Match is one ranked result from Search.
type Match struct {
	BlockID uuid.UUID
	Score   float64
}

// Stats is the running corpus-level bookkeeping named in spec §4.7.
type Stats struct {
	TotalDocs      int
	TotalTerms     int64
	AvgDocLength   float64
}

// Index is a single process-wide BM25 index (spec §9: one instance). Adds
// land in a pending buffer invisible to Search until Commit; Commit and
// Compact both take the exclusive lock so add is effectively serialized
// against compaction while concurrent Search proceeds against the last
// committed snapshot.
type Index struct {
	cfg Config

	mu sync.RWMutex // guards committed state, read by Search

	postings map[string][]posting
	docs     map[uuid.UUID]*docInfo
	totalDocs int
	totalTerms int64

	addMu           sync.Mutex // serializes Add/Delete against Commit/Compact
	pendingPostings map[string][]posting
	pendingDocs     map[uuid.UUID]*docInfo
	nextVersion     int64
}

func New(cfg Config) *Index {
	return &Index{
		cfg:             cfg.withDefaults(),
		postings:        make(map[string][]posting),
		docs:            make(map[uuid.UUID]*docInfo),
		pendingPostings: make(map[string][]posting),
		pendingDocs:     make(map[uuid.UUID]*docInfo),
	}
}

// Add indexes block's text, pending until the next Commit. Re-adding a
// blockID already present (committed or pending) replaces its prior
// content — the data model's content_hash dedup happens upstream (C1); by
// the time a block reaches here it is understood to be the current text
// for that id. Each Add stamps a fresh version so postings from a prior
// version of the same blockID are recognized as stale at Search time
// rather than lingering as phantom matches for terms no longer present.
func (ix *Index) Add(blockID uuid.UUID, text string, scope *string) {
	terms := tokenize(text)

	ix.addMu.Lock()
	defer ix.addMu.Unlock()

	ix.nextVersion++
	v := ix.nextVersion

	freqs := make(map[string]int, len(terms))
	for _, t := range terms {
		freqs[t]++
	}
	ix.pendingDocs[blockID] = &docInfo{length: len(terms), scope: scope, version: v}
	for term, f := range freqs {
		ix.pendingPostings[term] = append(ix.pendingPostings[term], posting{blockID: blockID, termFreq: f, version: v})
	}
}

// Delete tombstones blockID. It is visible to Search immediately against
// the committed snapshot (no commit required to hide a deleted block) but
// the postings themselves are only physically removed by Compact.
func (ix *Index) Delete(blockID uuid.UUID) {
	ix.addMu.Lock()
	defer ix.addMu.Unlock()

	if d, ok := ix.pendingDocs[blockID]; ok {
		d.tombstoned = true
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if d, ok := ix.docs[blockID]; ok {
		d.tombstoned = true
	}
}

// Commit flushes pending adds into the searchable snapshot.
func (ix *Index) Commit() {
	ix.addMu.Lock()
	defer ix.addMu.Unlock()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for term, postings := range ix.pendingPostings {
		ix.postings[term] = append(ix.postings[term], postings...)
	}
	for id, d := range ix.pendingDocs {
		if prev, existed := ix.docs[id]; existed {
			ix.totalTerms -= int64(prev.length)
		} else {
			ix.totalDocs++
		}
		ix.totalTerms += int64(d.length)
		ix.docs[id] = d
	}

	ix.pendingPostings = make(map[string][]posting)
	ix.pendingDocs = make(map[uuid.UUID]*docInfo)
}

// Compact physically drops tombstoned documents' postings and recomputes
// corpus totals. It holds the same exclusive lock as Commit, so add is
// exclusive against compaction per spec §4.7.
func (ix *Index) Compact() {
	ix.addMu.Lock()
	defer ix.addMu.Unlock()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	liveDocs := make(map[uuid.UUID]*docInfo, len(ix.docs))
	var totalTerms int64
	for id, d := range ix.docs {
		if d.tombstoned {
			continue
		}
		liveDocs[id] = d
		totalTerms += int64(d.length)
	}

	livePostings := make(map[string][]posting, len(ix.postings))
	for term, plist := range ix.postings {
		kept := plist[:0:0]
		for _, p := range plist {
			if d, ok := liveDocs[p.blockID]; ok && d.version == p.version {
				kept = append(kept, p)
			}
		}
		if len(kept) > 0 {
			livePostings[term] = kept
		}
	}

	ix.docs = liveDocs
	ix.postings = livePostings
	ix.totalDocs = len(liveDocs)
	ix.totalTerms = totalTerms
}

// Stats returns the running corpus bookkeeping against the last committed
// snapshot.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	avg := 0.0
	if ix.totalDocs > 0 {
		avg = float64(ix.totalTerms) / float64(ix.totalDocs)
	}
	return Stats{TotalDocs: ix.totalDocs, TotalTerms: ix.totalTerms, AvgDocLength: avg}
}

// Search ranks committed, non-tombstoned documents by BM25 score against
// query. scope, when non-nil, keeps only blocks whose recorded scope
// matches it or is global (nil) — the project-first tie-break over this
// result set is the retriever's responsibility (C10), not the index's.
func (ix *Index) Search(query string, k int, scope *string) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 || ix.totalDocs == 0 {
		return nil
	}

	avgdl := float64(ix.totalTerms) / float64(ix.totalDocs)
	if avgdl == 0 {
		avgdl = 1
	}

	scores := make(map[uuid.UUID]float64)
	for _, term := range uniqueTokens(tokenize(query)) {
		plist, ok := ix.postings[term]
		if !ok {
			continue
		}
		n := 0
		for _, p := range plist {
			if d, ok := ix.docs[p.blockID]; ok && !d.tombstoned && d.version == p.version {
				n++
			}
		}
		if n == 0 {
			continue
		}
		idf := idf(ix.totalDocs, n)
		for _, p := range plist {
			d, ok := ix.docs[p.blockID]
			if !ok || d.tombstoned || d.version != p.version {
				continue
			}
			if !scopeAllowed(scope, d.scope) {
				continue
			}
			tf := float64(p.termFreq)
			denom := tf + ix.cfg.K1*(1-ix.cfg.B+ix.cfg.B*float64(d.length)/avgdl)
			scores[p.blockID] += idf * (tf * (ix.cfg.K1 + 1)) / denom
		}
	}

	out := make([]Match, 0, len(scores))
	for id, s := range scores {
		out = append(out, Match{BlockID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].BlockID.String() < out[j].BlockID.String()
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func idf(totalDocs, docFreq int) float64 {
	n := float64(totalDocs)
	df := float64(docFreq)
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

func scopeAllowed(filter, docScope *string) bool {
	if filter == nil {
		return true
	}
	return docScope == nil || *docScope == *filter
}

func tokenize(text string) []string {
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
	return tokens
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
