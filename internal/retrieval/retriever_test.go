package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/index/lexical"
	"github.com/rivergate/mediareef/internal/index/vector"
	"github.com/rivergate/mediareef/internal/jobs/scheduler"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/rivergate/mediareef/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

type fakeLexical struct {
	matches []lexical.Match
}

func (f *fakeLexical) Search(query string, k int, scope *string) []lexical.Match {
	if len(f.matches) > k {
		return f.matches[:k]
	}
	return f.matches
}

type fakeVector struct {
	byModel map[string][]vector.Match
	err     error
}

func (f *fakeVector) Search(modelID string, query []float32, k int, scope *string) ([]vector.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := f.byModel[modelID]
	if len(m) > k {
		m = m[:k]
	}
	return m, nil
}

type fakeRegistry struct {
	text  []content.EmbeddingModel
	image []content.EmbeddingModel
	audio []content.EmbeddingModel
}

func (f *fakeRegistry) ActiveModels(modality content.Modality) []content.EmbeddingModel {
	switch modality {
	case content.ModalityText:
		return f.text
	case content.ModalityImage:
		return f.image
	case content.ModalityAudio:
		return f.audio
	}
	return nil
}

type fakeEmbedder struct {
	denyAll bool
	err     error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, model content.EmbeddingModel, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}
func (f *fakeEmbedder) EmbedImage(ctx context.Context, model content.EmbeddingModel, b []byte) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (f *fakeEmbedder) EmbedAudio(ctx context.Context, model content.EmbeddingModel, b []byte) ([]float32, error) {
	return []float32{1, 0}, nil
}

type fakeMeta struct {
	byID map[uuid.UUID]BlockMeta
}

func (f *fakeMeta) GetBlocksMeta(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]BlockMeta, error) {
	out := make(map[uuid.UUID]BlockMeta)
	for _, id := range ids {
		if m, ok := f.byID[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakeLogWriter struct {
	written []content.SearchLog
	err     error
}

func (f *fakeLogWriter) WriteSearchLog(ctx context.Context, log content.SearchLog) error {
	f.written = append(f.written, log)
	return f.err
}

func newScheduler(t *testing.T, textEmbedSlots int) *scheduler.Scheduler {
	t.Helper()
	return scheduler.New(testLogger(t), scheduler.Config{
		MaxInFlight: map[scheduler.JobClass]int{scheduler.ClassEmbedding: textEmbedSlots},
	})
}

func mustModel(t *testing.T, id string, modality content.Modality) content.EmbeddingModel {
	t.Helper()
	m, err := content.NewEmbeddingModel(id, modality, 2, content.MetricCosine, true)
	require.NoError(t, err)
	return *m
}

func TestSearch_TextQueryFansOutLexicalAndVector(t *testing.T) {
	textModel := mustModel(t, "text-e5", content.ModalityText)
	b1, b2 := uuid.New(), uuid.New()

	lex := &fakeLexical{matches: []lexical.Match{{BlockID: b1, Score: 2.0}}}
	vec := &fakeVector{byModel: map[string][]vector.Match{"text-e5": {{BlockID: b2, Score: 0.9}}}}
	reg := &fakeRegistry{text: []content.EmbeddingModel{textModel}}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{
		b1: {ContentHash: "h1", CreatedAt: time.Unix(1, 0), URI: "u1"},
		b2: {ContentHash: "h2", CreatedAt: time.Unix(2, 0), URI: "u2"},
	}}
	logw := &fakeLogWriter{}

	r := New(testLogger(t), Config{}, lex, vec, reg, &fakeEmbedder{}, newScheduler(t, 2), meta, logw)

	q := Query{Text: strp("deep learning"), QueryType: QueryText, K: 5}
	res, err := r.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Len(t, res.Citations, 2)
	assert.Len(t, logw.written, 1)
	assert.Equal(t, "text", logw.written[0].QueryType)
}

func TestSearch_TotalEmbeddingDenialReturnsQueueFull(t *testing.T) {
	textModel := mustModel(t, "text-e5", content.ModalityText)
	reg := &fakeRegistry{text: []content.EmbeddingModel{textModel}}
	lex := &fakeLexical{}
	vec := &fakeVector{}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{}}

	sched := newScheduler(t, 0) // zero permits: every TryAcquire is denied immediately
	r := New(testLogger(t), Config{}, lex, vec, reg, &fakeEmbedder{}, sched, meta, &fakeLogWriter{})

	q := Query{Text: strp("anything"), QueryType: QueryText}
	_, err := r.Search(context.Background(), q)
	require.Error(t, err)
	var qf *errs.QueueFull
	assert.ErrorAs(t, err, &qf)
}

func TestSearch_LexicalUnavailableDegradesNotFails(t *testing.T) {
	reg := &fakeRegistry{}
	vec := &fakeVector{}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{}}

	r := New(testLogger(t), Config{}, nil, vec, reg, &fakeEmbedder{}, newScheduler(t, 2), meta, &fakeLogWriter{})

	q := Query{Text: strp("anything"), QueryType: QueryText}
	res, err := r.Search(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Citations)
}

func TestSearch_VisualQueryUsesImageModelsAndCaptionText(t *testing.T) {
	imgModel := mustModel(t, "clip-img", content.ModalityImage)
	txtModel := mustModel(t, "text-e5", content.ModalityText)
	b1, b2 := uuid.New(), uuid.New()

	reg := &fakeRegistry{image: []content.EmbeddingModel{imgModel}, text: []content.EmbeddingModel{txtModel}}
	vec := &fakeVector{byModel: map[string][]vector.Match{
		"clip-img": {{BlockID: b1, Score: 0.8}},
		"text-e5":  {{BlockID: b2, Score: 0.7}},
	}}
	lex := &fakeLexical{matches: []lexical.Match{{BlockID: b2, Score: 1.5}}}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{
		b1: {ContentHash: "h1", CreatedAt: time.Unix(1, 0)},
		b2: {ContentHash: "h2", CreatedAt: time.Unix(2, 0)},
	}}

	r := New(testLogger(t), Config{}, lex, vec, reg, &fakeEmbedder{}, newScheduler(t, 2), meta, &fakeLogWriter{})

	q := Query{Text: strp("a caption"), ImageBytes: []byte{0xFF}, QueryType: QueryVisual, K: 5}
	res, err := r.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Len(t, res.Citations, 2)
}

func TestSearch_TimeAnchoredFiltersOutOfRangeBlocks(t *testing.T) {
	textModel := mustModel(t, "text-e5", content.ModalityText)
	inRange, outOfRange := uuid.New(), uuid.New()

	reg := &fakeRegistry{text: []content.EmbeddingModel{textModel}}
	vec := &fakeVector{byModel: map[string][]vector.Match{
		"text-e5": {{BlockID: inRange, Score: 0.9}, {BlockID: outOfRange, Score: 0.8}},
	}}
	lex := &fakeLexical{}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{
		inRange:    {ContentHash: "h1", CreatedAt: time.Unix(1, 0), Time: &content.TimeRange{T0: 10, T1: 20}},
		outOfRange: {ContentHash: "h2", CreatedAt: time.Unix(2, 0), Time: &content.TimeRange{T0: 100, T1: 200}},
	}}

	r := New(testLogger(t), Config{}, lex, vec, reg, &fakeEmbedder{}, newScheduler(t, 2), meta, &fakeLogWriter{})

	q := Query{Text: strp("x"), QueryType: QueryTimeAnchored, TRange: &content.TimeRange{T0: 0, T1: 30}, K: 5}
	res, err := r.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, inRange, res.Citations[0].BlockID)
}

func TestSearch_DedupByContentHashKeepsFirst(t *testing.T) {
	textModel := mustModel(t, "text-e5", content.ModalityText)
	b1, b2 := uuid.New(), uuid.New()

	reg := &fakeRegistry{text: []content.EmbeddingModel{textModel}}
	lex := &fakeLexical{matches: []lexical.Match{{BlockID: b1, Score: 3.0}, {BlockID: b2, Score: 1.0}}}
	vec := &fakeVector{}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{
		b1: {ContentHash: "same", CreatedAt: time.Unix(1, 0)},
		b2: {ContentHash: "same", CreatedAt: time.Unix(2, 0)},
	}}

	r := New(testLogger(t), Config{}, lex, vec, reg, &fakeEmbedder{}, newScheduler(t, 2), meta, &fakeLogWriter{})

	q := Query{Text: strp("x"), QueryType: QueryText, K: 5}
	res, err := r.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, b1, res.Citations[0].BlockID)
}

func TestSearch_ScopeOrderingPutsMatchingProjectFirst(t *testing.T) {
	textModel := mustModel(t, "text-e5", content.ModalityText)
	global, scoped, otherProject := uuid.New(), uuid.New(), uuid.New()
	projA := "proj-a"
	projB := "proj-b"

	reg := &fakeRegistry{text: []content.EmbeddingModel{textModel}}
	lex := &fakeLexical{matches: []lexical.Match{
		{BlockID: global, Score: 3.0},
		{BlockID: otherProject, Score: 2.5},
		{BlockID: scoped, Score: 1.0},
	}}
	vec := &fakeVector{}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{
		global:       {ContentHash: "h1", CreatedAt: time.Unix(1, 0), ProjectScope: nil},
		otherProject: {ContentHash: "h2", CreatedAt: time.Unix(2, 0), ProjectScope: &projB},
		scoped:       {ContentHash: "h3", CreatedAt: time.Unix(3, 0), ProjectScope: &projA},
	}}

	r := New(testLogger(t), Config{}, lex, vec, reg, &fakeEmbedder{}, newScheduler(t, 2), meta, &fakeLogWriter{})

	q := Query{Text: strp("x"), QueryType: QueryText, Scope: &projA, K: 5}
	res, err := r.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Citations, 2)
	assert.Equal(t, scoped, res.Citations[0].BlockID)
	assert.Equal(t, global, res.Citations[1].BlockID)
}

func TestSearch_WeightedSumRequiresWeightsSummingToOne(t *testing.T) {
	textModel := mustModel(t, "text-e5", content.ModalityText)
	reg := &fakeRegistry{text: []content.EmbeddingModel{textModel}}
	b1 := uuid.New()
	lex := &fakeLexical{matches: []lexical.Match{{BlockID: b1, Score: 1.0}}}
	vec := &fakeVector{byModel: map[string][]vector.Match{"text-e5": {{BlockID: b1, Score: 1.0}}}}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{b1: {ContentHash: "h1", CreatedAt: time.Unix(1, 0)}}}

	r := New(testLogger(t), Config{}, lex, vec, reg, &fakeEmbedder{}, newScheduler(t, 2), meta, &fakeLogWriter{})

	q := Query{
		Text:      strp("x"),
		QueryType: QueryText,
		Fusion:    FusionWeightedSum,
		Weights:   map[string]float64{"lexical": 0.3, "text-e5": 0.3},
	}
	_, err := r.Search(context.Background(), q)
	require.Error(t, err)
}

func strp(s string) *string { return &s }
