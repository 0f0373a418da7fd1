// Package vector implements the dense vector index (spec component C8): one
// approximate-nearest-neighbor graph per embedding model, upserted by block
// id like the lexical index (package lexical) but with deletes that unlink
// the node at once instead of tombstoning it, and grounded on the teacher's Qdrant-backed vectorStore for the durable
// mirror (see internal/store/vectorstore), which this in-process graph is
// rebuildable from.
//
// The graph construction follows the standard multi-layer HNSW design
// (exponential level assignment, greedy descent from an entry point, local
// neighbor lists capped at M per layer) simplified to slice-based candidate
// tracking rather than a binary-heap priority queue — correct and readable
// at the scale this system runs at, not tuned for library-grade QPS.
package vector

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/vectorstore"
)

// Config holds the HNSW construction/search tunables named in spec §6
// (`vector.hnsw.<params>`, `vector.oversample`).
type Config struct {
	M              int // max neighbors per node per layer
	EfConstruction int // candidate list size while inserting
	EfSearch       int // candidate list size while searching
	Oversample     int // post-ANN scope-filter oversample factor, spec floor is 4
}

func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 100
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 64
	}
	if c.Oversample < 4 {
		c.Oversample = 4
	}
	return c
}

// Match is one ranked result from Search, its Score already metric-normalized
// per spec §4.8 (cosine/inner-product higher-is-better as-is; L2 remapped to
// 1/(1+d)).
type Match struct {
	BlockID uuid.UUID
	Score   float64
}

type node struct {
	id        uuid.UUID
	vector    []float32
	scope     *string
	createdAt time.Time
	level     int
	neighbors []map[uuid.UUID]struct{} // neighbors[layer] = set of neighbor ids
}

// graph is one HNSW structure for a single (model_id, metric) pair.
type graph struct {
	mu         sync.RWMutex
	cfg        Config
	metric     content.Metric
	dim        int
	nodes      map[uuid.UUID]*node
	entryPoint uuid.UUID
	maxLevel   int
	rng        *rand.Rand
}

func newGraph(cfg Config, metric content.Metric, dim int) *graph {
	return &graph{
		cfg:    cfg,
		metric: metric,
		dim:    dim,
		nodes:  make(map[uuid.UUID]*node),
		rng:    rand.New(rand.NewSource(1)),
	}
}

// Index owns one graph per model_id and tracks, for each block, which
// models it has a vector in — needed so Delete can remove it "from all
// models' graphs" per §4.8 without the caller enumerating models itself.
type Index struct {
	mu          sync.RWMutex
	cfg         Config
	graphs      map[string]*graph
	blockModels map[uuid.UUID]map[string]struct{}

	// Mirror, when set, receives every successful Insert so the graph can be
	// rebuilt from it per spec §4.8 ("index state may be lost without data
	// loss"). A nil Mirror keeps the index purely in-process, same as before
	// this field existed.
	Mirror vectorstore.Store
	log    *logger.Logger
}

func New(cfg Config) *Index {
	return &Index{
		cfg:         cfg.withDefaults(),
		graphs:      make(map[string]*graph),
		blockModels: make(map[uuid.UUID]map[string]struct{}),
	}
}

// NewWithMirror constructs an Index whose every successful Insert is
// best-effort mirrored to a durable vectorstore.Store (C8's rebuild source).
func NewWithMirror(cfg Config, mirror vectorstore.Store, log *logger.Logger) *Index {
	ix := New(cfg)
	ix.Mirror = mirror
	ix.log = log
	return ix
}

// Insert adds or replaces blockID's vector under model. Re-inserting an
// existing (model_id, block_id) pair is an upsert, not an error — the old
// node is fully unlinked from the graph before the new one is wired in, so
// stale neighbor edges never survive a re-embed. When Mirror is set, the
// same vector is upserted there too; a mirror failure is a warning, not an
// Insert failure, since the in-process graph already holds the vector.
func (ix *Index) Insert(ctx context.Context, model content.EmbeddingModel, blockID uuid.UUID, vec []float32, scope *string, createdAt time.Time) error {
	if len(vec) != model.Dim {
		return fmt.Errorf("vector index: model %q expects dim=%d, got %d", model.ID, model.Dim, len(vec))
	}

	ix.mu.Lock()
	g, ok := ix.graphs[model.ID]
	if !ok {
		g = newGraph(ix.cfg, model.Metric, model.Dim)
		ix.graphs[model.ID] = g
	}
	if ix.blockModels[blockID] == nil {
		ix.blockModels[blockID] = make(map[string]struct{})
	}
	ix.blockModels[blockID][model.ID] = struct{}{}
	ix.mu.Unlock()

	g.upsert(blockID, vec, scope, createdAt)

	if ix.Mirror != nil {
		bv := content.BlockVector{BlockID: blockID, ModelID: model.ID, Vector: vec, IndexedAt: createdAt}
		if err := ix.Mirror.Upsert(ctx, bv, scope); err != nil && ix.log != nil {
			ix.log.Warn("vector index: mirror upsert failed (continuing with in-process graph only)", "block_id", blockID, "model_id", model.ID, "err", err)
		}
	}
	return nil
}

// Search returns up to k matches for model_id, scope-filtered post-ANN: the
// graph traversal is run for k*oversample candidates before the scope
// filter is applied, so a narrow scope doesn't starve recall (§4.8).
func (ix *Index) Search(modelID string, query []float32, k int, scope *string) ([]Match, error) {
	ix.mu.RLock()
	g, ok := ix.graphs[modelID]
	ix.mu.RUnlock()
	if !ok || k <= 0 {
		return nil, nil
	}
	return g.search(query, k, scope), nil
}

// Delete removes blockID from every model's graph it was inserted into.
func (ix *Index) Delete(blockID uuid.UUID) {
	ix.mu.Lock()
	models := ix.blockModels[blockID]
	delete(ix.blockModels, blockID)
	var graphs []*graph
	for modelID := range models {
		if g, ok := ix.graphs[modelID]; ok {
			graphs = append(graphs, g)
		}
	}
	ix.mu.Unlock()

	for _, g := range graphs {
		g.remove(blockID)
	}
}

func (g *graph) upsert(id uuid.UUID, vec []float32, scope *string, createdAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		g.unlinkLocked(id)
	}

	level := g.randomLevel()
	n := &node{id: id, vector: vec, scope: scope, createdAt: createdAt, level: level, neighbors: make([]map[uuid.UUID]struct{}, level+1)}
	for i := range n.neighbors {
		n.neighbors[i] = make(map[uuid.UUID]struct{})
	}
	g.nodes[id] = n

	if len(g.nodes) == 1 {
		g.entryPoint = id
		g.maxLevel = level
		return
	}

	entry := g.entryPoint
	for l := g.maxLevel; l > level; l-- {
		entry = g.greedyClosest(vec, entry, l)
	}

	for l := minInt(level, g.maxLevel); l >= 0; l-- {
		candidates := g.searchLayerLocked(vec, []uuid.UUID{entry}, g.cfg.EfConstruction, l)
		neighbors := selectNeighbors(candidates, g.cfg.M)
		for _, c := range neighbors {
			n.neighbors[l][c.id] = struct{}{}
			other := g.nodes[c.id]
			other.neighbors[l][id] = struct{}{}
			g.pruneLocked(other, l)
		}
		if len(candidates) > 0 {
			entry = candidates[0].id
		}
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.entryPoint = id
	}
}

func (g *graph) remove(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlinkLocked(id)
	delete(g.nodes, id)
	if id == g.entryPoint {
		g.reassignEntryLocked()
	}
}

func (g *graph) unlinkLocked(id uuid.UUID) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for l, neighbors := range n.neighbors {
		for other := range neighbors {
			if on, ok := g.nodes[other]; ok && l < len(on.neighbors) {
				delete(on.neighbors[l], id)
			}
		}
	}
}

func (g *graph) reassignEntryLocked() {
	g.entryPoint = uuid.Nil
	g.maxLevel = 0
	for id, n := range g.nodes {
		if g.entryPoint == uuid.Nil || n.level > g.maxLevel {
			g.entryPoint = id
			g.maxLevel = n.level
		}
	}
}

func (g *graph) pruneLocked(n *node, layer int) {
	if len(n.neighbors[layer]) <= g.cfg.M {
		return
	}
	cands := make([]candidate, 0, len(n.neighbors[layer]))
	for id := range n.neighbors[layer] {
		other := g.nodes[id]
		cands = append(cands, candidate{id: id, dist: traversalDistance(g.metric, rawScore(g.metric, n.vector, other.vector))})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	kept := cands[:g.cfg.M]
	n.neighbors[layer] = make(map[uuid.UUID]struct{}, len(kept))
	for _, c := range kept {
		n.neighbors[layer][c.id] = struct{}{}
	}
}

func (g *graph) randomLevel() int {
	if g.cfg.M <= 1 {
		return 0
	}
	mL := 1.0 / math.Log(float64(g.cfg.M))
	lvl := int(math.Floor(-math.Log(g.rng.Float64()+1e-12) * mL))
	if lvl > 32 {
		lvl = 32
	}
	return lvl
}

func (g *graph) greedyClosest(query []float32, from uuid.UUID, layer int) uuid.UUID {
	current := from
	for {
		cur := g.nodes[current]
		if layer >= len(cur.neighbors) {
			return current
		}
		best := current
		bestDist := traversalDistance(g.metric, rawScore(g.metric, query, cur.vector))
		improved := false
		for nb := range cur.neighbors[layer] {
			d := traversalDistance(g.metric, rawScore(g.metric, query, g.nodes[nb].vector))
			if d < bestDist {
				bestDist = d
				best = nb
				improved = true
			}
		}
		if !improved {
			return best
		}
		current = best
	}
}

type candidate struct {
	id   uuid.UUID
	dist float64
}

// searchLayerLocked expands outward from entryPoints along layer's edges,
// keeping the ef closest nodes found. Caller holds g.mu.
func (g *graph) searchLayerLocked(query []float32, entryPoints []uuid.UUID, ef int, layer int) []candidate {
	visited := make(map[uuid.UUID]struct{})
	var found []candidate
	frontier := make([]candidate, 0, len(entryPoints))
	for _, id := range entryPoints {
		if _, ok := g.nodes[id]; !ok {
			continue
		}
		visited[id] = struct{}{}
		d := traversalDistance(g.metric, rawScore(g.metric, query, g.nodes[id].vector))
		c := candidate{id: id, dist: d}
		frontier = append(frontier, c)
		found = append(found, c)
	}

	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].dist < frontier[j].dist })
		cur := frontier[0]
		frontier = frontier[1:]

		worst := worstDist(found, ef)
		if cur.dist > worst && len(found) >= ef {
			continue
		}

		n := g.nodes[cur.id]
		if layer >= len(n.neighbors) {
			continue
		}
		for nb := range n.neighbors[layer] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			d := traversalDistance(g.metric, rawScore(g.metric, query, g.nodes[nb].vector))
			if len(found) < ef || d < worstDist(found, ef) {
				nc := candidate{id: nb, dist: d}
				frontier = append(frontier, nc)
				found = append(found, nc)
			}
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].dist < found[j].dist })
	if len(found) > ef {
		found = found[:ef]
	}
	return found
}

func worstDist(found []candidate, ef int) float64 {
	if len(found) == 0 {
		return math.Inf(1)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].dist < found[j].dist })
	idx := len(found) - 1
	if ef-1 < idx {
		idx = ef - 1
	}
	if idx < 0 {
		idx = 0
	}
	return found[idx].dist
}

func selectNeighbors(cands []candidate, m int) []candidate {
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > m {
		cands = cands[:m]
	}
	return cands
}

// search runs the ANN traversal for k*oversample candidates, then applies
// the scope filter, returning the top k.
func (g *graph) search(query []float32, k int, scope *string) []Match {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.nodes) == 0 {
		return nil
	}

	ef := k * g.cfg.Oversample
	if ef < g.cfg.EfSearch {
		ef = g.cfg.EfSearch
	}

	entry := g.entryPoint
	for l := g.maxLevel; l > 0; l-- {
		entry = g.greedyClosest(query, entry, l)
	}
	cands := g.searchLayerLocked(query, []uuid.UUID{entry}, ef, 0)

	out := make([]Match, 0, k)
	for _, c := range cands {
		n := g.nodes[c.id]
		if !scopeAllowed(scope, n.scope) {
			continue
		}
		raw := rawScore(g.metric, query, n.vector)
		out = append(out, Match{BlockID: n.id, Score: exposedScore(g.metric, raw)})
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

func scopeAllowed(filter, docScope *string) bool {
	if filter == nil {
		return true
	}
	return docScope == nil || *docScope == *filter
}

// rawScore returns the metric's natural value: cosine similarity and inner
// product (higher is better), or Euclidean distance for L2 (lower is
// better).
func rawScore(metric content.Metric, a, b []float32) float64 {
	switch metric {
	case content.MetricInnerProduct:
		return dot(a, b)
	case content.MetricL2:
		return euclidean(a, b)
	default: // cosine
		return cosine(a, b)
	}
}

// traversalDistance maps rawScore onto a common lower-is-better scale so
// graph descent/expansion logic is metric-agnostic.
func traversalDistance(metric content.Metric, raw float64) float64 {
	if metric == content.MetricL2 {
		return raw
	}
	return -raw
}

// exposedScore applies §4.8's normalization: cosine/inner-product pass
// through as-is; L2 is remapped to 1/(1+d) so higher is always better in
// the value callers see.
func exposedScore(metric content.Metric, raw float64) float64 {
	if metric == content.MetricL2 {
		return 1.0 / (1.0 + raw)
	}
	return raw
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32) float64 {
	var dotv, na, nb float64
	for i := range a {
		dotv += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dotv / (math.Sqrt(na) * math.Sqrt(nb))
}

func euclidean(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return math.Sqrt(s)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
