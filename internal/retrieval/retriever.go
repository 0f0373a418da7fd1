// Package retrieval implements the Multimodal Retriever (spec component
// C10): query routing by modality, per-model sub-query dispatch, late
// fusion, deduplication, scope filtering and citation synthesis, grounded
// on the assembly style of the teacher's chat/learning retrieval steps
// (internal/modules/chat/steps/material_chunks_retrieval.go) — gather raw
// candidates from each backing store, score, dedup, and build a
// caller-facing result — generalized from a single Pinecone call to the
// spec's multi-index, multi-model fan-out and fusion.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/index/lexical"
	"github.com/rivergate/mediareef/internal/index/vector"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/platform/otelx"
)

// Config holds the retriever's ambient tunables (§4.10 RRF constant and the
// aggregate per-query deadline from §5); oversampling is set per Query.
type Config struct {
	RRFConstant     float64
	AggregateDeadline time.Duration
}

// maxConcurrentSubQueries bounds how many per-modality embed+vector-search
// sub-queries run at once for a single Search call, so a query that fans out
// across many active models doesn't flood the embedding scheduler and the
// vector index with simultaneous work.
const maxConcurrentSubQueries = 8

func (c Config) withDefaults() Config {
	if c.RRFConstant <= 0 {
		c.RRFConstant = defaultRRFConstant
	}
	if c.AggregateDeadline <= 0 {
		c.AggregateDeadline = 5 * time.Second
	}
	return c
}

// Retriever implements C10. There is a single instance per process (spec §9).
type Retriever struct {
	log       *logger.Logger
	cfg       Config
	lexical   LexicalIndex
	vectors   VectorIndex
	models    ModelRegistry
	embedder  Embedder
	sched     SchedulerRunner
	meta      MetaProvider
	logWriter LogWriter
}

func New(log *logger.Logger, cfg Config, lexicalIdx LexicalIndex, vectorIdx VectorIndex, models ModelRegistry, embedder Embedder, sched SchedulerRunner, meta MetaProvider, logWriter LogWriter) *Retriever {
	return &Retriever{
		log:       log,
		cfg:       cfg.withDefaults(),
		lexical:   lexicalIdx,
		vectors:   vectorIdx,
		models:    models,
		embedder:  embedder,
		sched:     sched,
		meta:      meta,
		logWriter: logWriter,
	}
}

// Search executes one query per §4.10: route, fan out, fuse, dedup, filter
// by scope, synthesize citations, and write the audit log.
func (r *Retriever) Search(ctx context.Context, q Query) (result Result, err error) {
	q = q.withDefaults()
	ctx, span := otelx.StartRetrieve(ctx, string(q.QueryType))
	defer func() { otelx.End(span, &err) }()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.AggregateDeadline)
	defer cancel()

	kPrime := q.K * q.Oversample

	var lists []rankedList
	degraded := false
	embedAttempts, embedDenied := 0, 0

	wantText := q.QueryType == QueryText || q.QueryType == QueryTimeAnchored || q.QueryType == QueryHybrid || (q.QueryType == QueryVisual && q.Text != nil)
	wantVisual := q.QueryType == QueryVisual || q.QueryType == QueryTimeAnchored || q.QueryType == QueryHybrid

	var jobs []subQueryJob

	if wantText && q.Text != nil && *q.Text != "" {
		if r.lexical != nil {
			matches := r.lexical.Search(*q.Text, kPrime, q.Scope)
			lists = append(lists, rankedList{key: "lexical", blocks: lexicalToScored(matches)})
		} else {
			degraded = true
		}

		for _, model := range r.models.ActiveModels(content.ModalityText) {
			model := model
			jobs = append(jobs, subQueryJob{key: model.ID, isEmbed: true, run: func(c context.Context) ([]content.ScoredBlock, error) {
				vec, err := r.embedQuery(c, model, func(c context.Context) ([]float32, error) {
					return r.embedder.EmbedText(c, model, *q.Text)
				})
				if err != nil {
					return nil, err
				}
				matches, err := r.vectors.Search(model.ID, vec, kPrime, q.Scope)
				if err != nil {
					return nil, err
				}
				return vectorToScored(matches), nil
			}})
		}
	}

	if wantVisual && len(q.ImageBytes) > 0 {
		for _, model := range r.models.ActiveModels(content.ModalityImage) {
			model := model
			jobs = append(jobs, subQueryJob{key: model.ID, isEmbed: true, run: func(c context.Context) ([]content.ScoredBlock, error) {
				vec, err := r.embedQuery(c, model, func(c context.Context) ([]float32, error) {
					return r.embedder.EmbedImage(c, model, q.ImageBytes)
				})
				if err != nil {
					return nil, err
				}
				matches, err := r.vectors.Search(model.ID, vec, kPrime, q.Scope)
				if err != nil {
					return nil, err
				}
				return vectorToScored(matches), nil
			}})
		}
	}

	if (q.QueryType == QueryHybrid || q.QueryType == QueryTimeAnchored) && len(q.AudioBytes) > 0 {
		for _, model := range r.models.ActiveModels(content.ModalityAudio) {
			model := model
			jobs = append(jobs, subQueryJob{key: model.ID, isEmbed: true, run: func(c context.Context) ([]content.ScoredBlock, error) {
				vec, err := r.embedQuery(c, model, func(c context.Context) ([]float32, error) {
					return r.embedder.EmbedAudio(c, model, q.AudioBytes)
				})
				if err != nil {
					return nil, err
				}
				matches, err := r.vectors.Search(model.ID, vec, kPrime, q.Scope)
				if err != nil {
					return nil, err
				}
				return vectorToScored(matches), nil
			}})
		}
	}

	outcomes := r.runSubQueries(ctx, jobs)
	for _, o := range outcomes {
		if o.isEmbed {
			embedAttempts++
		}
		if o.err != nil {
			if o.isEmbed && isQueueFull(o.err) {
				embedDenied++
			} else {
				degraded = true
			}
			continue
		}
		lists = append(lists, rankedList{key: o.key, blocks: o.blocks})
	}

	if embedAttempts > 0 && embedDenied == embedAttempts {
		return Result{}, &errs.QueueFull{JobClass: string(scheduler.ClassEmbedding)}
	}
	if embedDenied > 0 {
		degraded = true
	}

	candidateIDs := uniqueBlockIDs(lists)
	metaByID, err := r.resolveMeta(ctx, candidateIDs)
	if err != nil {
		degraded = true
		metaByID = map[uuid.UUID]BlockMeta{}
	}

	if q.QueryType == QueryTimeAnchored && q.TRange != nil {
		lists = filterByTimeRange(lists, metaByID, *q.TRange)
	}

	fusedScores, bestRaw, detail, err := fuse(q.Fusion, lists, q.Weights, r.cfg.RRFConstant)
	if err != nil {
		return Result{}, err
	}

	ordered := orderCandidates(fusedScores, bestRaw, metaByID)
	deduped := dedup(ordered, metaByID)
	scoped := applyScopeOrdering(deduped, q.Scope, metaByID)
	if len(scoped) > q.K {
		scoped = scoped[:q.K]
	}

	citations := make([]Citation, 0, len(scoped))
	fusedRanking := make([]content.ScoredBlock, 0, len(scoped))
	citedIDs := make([]uuid.UUID, 0, len(scoped))
	for _, id := range scoped {
		m := metaByID[id]
		citations = append(citations, Citation{
			BlockID:       id,
			URI:           m.URI,
			T0:            timeField(m.Time, true),
			T1:            timeField(m.Time, false),
			Bbox:          m.Bbox,
			ProviderChain: m.ProviderChain,
			FusedScore:    fusedScores[id],
			PerModality:   detail[id],
			Text:          m.Text,
			Confidence:    m.Confidence,
			Modality:      m.Modality,
		})
		fusedRanking = append(fusedRanking, content.ScoredBlock{BlockID: id, Score: fusedScores[id]})
		citedIDs = append(citedIDs, id)
	}

	perModalityResults := make([]content.PerModalityResult, 0, len(lists))
	for _, l := range lists {
		perModalityResults = append(perModalityResults, content.PerModalityResult{ModelID: l.key, Ranked: l.blocks})
	}

	searchLog := content.SearchLog{
		ID:                 uuid.New(),
		Ts:                 time.Now().UTC(),
		QueryType:          string(q.QueryType),
		ScopeFilter:        q.Scope,
		PerModalityResults: perModalityResults,
		FusedRanking:       fusedRanking,
		CitationsReturned:  citedIDs,
	}
	if r.logWriter != nil {
		if err := r.logWriter.WriteSearchLog(ctx, searchLog); err != nil {
			r.log.Warn("search log write failed", "error", err, "query_type", q.QueryType)
		}
	}

	return Result{Citations: citations, Degraded: degraded, Log: searchLog}, nil
}

// subQueryJob is one per-modality, per-model embed+vector-search lookup,
// dispatched concurrently with its siblings by runSubQueries.
type subQueryJob struct {
	key     string // rankedList key: the embedding model ID
	isEmbed bool   // true for every job here; kept explicit for clarity at the call site
	run     func(ctx context.Context) ([]content.ScoredBlock, error)
}

type subQueryOutcome struct {
	key     string
	isEmbed bool
	blocks  []content.ScoredBlock
	err     error
}

// runSubQueries fans jobs out across up to maxConcurrentSubQueries goroutines
// via errgroup+semaphore and collects each job's outcome in call order, so a
// query touching several active embedding models pays the aggregate deadline
// once instead of once per model.
func (r *Retriever) runSubQueries(ctx context.Context, jobs []subQueryJob) []subQueryOutcome {
	outcomes := make([]subQueryOutcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxConcurrentSubQueries)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				outcomes[i] = subQueryOutcome{key: job.key, isEmbed: job.isEmbed, err: err}
				return nil
			}
			defer sem.Release(1)
			blocks, err := job.run(gctx)
			outcomes[i] = subQueryOutcome{key: job.key, isEmbed: job.isEmbed, blocks: blocks, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Retriever) embedQuery(ctx context.Context, model content.EmbeddingModel, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	permit, err := r.sched.TryAcquire(ctx, scheduler.ClassEmbedding, 0)
	if err != nil {
		return nil, err
	}
	vec, embedErr := fn(ctx)
	permit.Release(embedErr == nil)
	if embedErr != nil {
		return nil, fmt.Errorf("embed query for model %q: %w", model.ID, embedErr)
	}
	return vec, nil
}

func (r *Retriever) resolveMeta(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]BlockMeta, error) {
	if r.meta == nil || len(ids) == 0 {
		return map[uuid.UUID]BlockMeta{}, nil
	}
	return r.meta.GetBlocksMeta(ctx, ids)
}

func isQueueFull(err error) bool {
	var qf *errs.QueueFull
	return err != nil && asQueueFull(err, &qf)
}

func asQueueFull(err error, target **errs.QueueFull) bool {
	for err != nil {
		if qf, ok := err.(*errs.QueueFull); ok {
			*target = qf
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func lexicalToScored(matches []lexical.Match) []content.ScoredBlock {
	out := make([]content.ScoredBlock, len(matches))
	for i, m := range matches {
		out[i] = content.ScoredBlock{BlockID: m.BlockID, Score: m.Score}
	}
	return out
}

func vectorToScored(matches []vector.Match) []content.ScoredBlock {
	out := make([]content.ScoredBlock, len(matches))
	for i, m := range matches {
		out[i] = content.ScoredBlock{BlockID: m.BlockID, Score: m.Score}
	}
	return out
}

func uniqueBlockIDs(lists []rankedList) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, l := range lists {
		for _, b := range l.blocks {
			if _, ok := seen[b.BlockID]; ok {
				continue
			}
			seen[b.BlockID] = struct{}{}
			out = append(out, b.BlockID)
		}
	}
	return out
}

func filterByTimeRange(lists []rankedList, metaByID map[uuid.UUID]BlockMeta, tr content.TimeRange) []rankedList {
	out := make([]rankedList, 0, len(lists))
	for _, l := range lists {
		filtered := make([]content.ScoredBlock, 0, len(l.blocks))
		for _, b := range l.blocks {
			m, ok := metaByID[b.BlockID]
			if !ok || m.Time == nil || !tr.Overlaps(*m.Time) {
				continue
			}
			filtered = append(filtered, b)
		}
		out = append(out, rankedList{key: l.key, blocks: filtered})
	}
	return out
}

// orderCandidates sorts by fused score desc, then the §4.10 tie-break:
// higher per-modality best raw score, then created_at ascending, then
// block_id lexicographic.
func orderCandidates(fused map[uuid.UUID]float64, bestRaw map[uuid.UUID]float64, metaByID map[uuid.UUID]BlockMeta) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if fused[a] != fused[b] {
			return fused[a] > fused[b]
		}
		if bestRaw[a] != bestRaw[b] {
			return bestRaw[a] > bestRaw[b]
		}
		ta, tb := metaByID[a].CreatedAt, metaByID[b].CreatedAt
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a.String() < b.String()
	})
	return ids
}

// dedup groups by content_hash (keep first/highest-fused), then collapses
// same-segment blocks whose bboxes overlap >= 0.8 IoU into the first-seen
// representative.
func dedup(ordered []uuid.UUID, metaByID map[uuid.UUID]BlockMeta) []uuid.UUID {
	seenHash := make(map[string]bool)
	type kept struct {
		id        uuid.UUID
		segmentID uuid.UUID
		bbox      *content.BBox
	}
	var keptList []kept
	var out []uuid.UUID

	for _, id := range ordered {
		m := metaByID[id]
		if m.ContentHash != "" {
			if seenHash[m.ContentHash] {
				continue
			}
		}

		duplicate := false
		if m.Bbox != nil {
			for _, k := range keptList {
				if k.segmentID == m.SegmentID && k.bbox != nil && iou(*k.bbox, *m.Bbox) >= 0.8 {
					duplicate = true
					break
				}
			}
		}
		if duplicate {
			continue
		}

		if m.ContentHash != "" {
			seenHash[m.ContentHash] = true
		}
		keptList = append(keptList, kept{id: id, segmentID: m.SegmentID, bbox: m.Bbox})
		out = append(out, id)
	}
	return out
}

// applyScopeOrdering keeps fused order within each tier: matching-scope
// blocks first, then global (project_scope == nil) blocks, per §4.10's
// project-first ordering. Unscoped queries pass through unchanged.
func applyScopeOrdering(ordered []uuid.UUID, scope *string, metaByID map[uuid.UUID]BlockMeta) []uuid.UUID {
	if scope == nil {
		return ordered
	}
	var matched, global []uuid.UUID
	for _, id := range ordered {
		m := metaByID[id]
		if m.ProjectScope != nil && *m.ProjectScope == *scope {
			matched = append(matched, id)
		} else if m.ProjectScope == nil {
			global = append(global, id)
		}
	}
	return append(matched, global...)
}

func timeField(tr *content.TimeRange, start bool) *int64 {
	if tr == nil {
		return nil
	}
	v := tr.T1
	if start {
		v = tr.T0
	}
	return &v
}

// iou computes intersection-over-union for two normalized [0,1] boxes.
func iou(a, b content.BBox) float64 {
	ix0 := max64(a.X, b.X)
	iy0 := max64(a.Y, b.Y)
	ix1 := min64(a.X+a.W, b.X+b.W)
	iy1 := min64(a.Y+a.H, b.Y+b.H)
	iw := max64(0, ix1-ix0)
	ih := max64(0, iy1-iy0)
	inter := iw * ih
	union := a.W*a.H + b.W*b.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
