package retrieval

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/index/vector"
	"github.com/rivergate/mediareef/internal/registry"
)

// TestSearch_WiresConcreteModelRegistry exercises ModelRegistry with the real
// registry.Registry (C9) instead of a test double, confirming the retriever
// drives it through actual Register/ActiveModels calls rather than only the
// fakes the rest of this package's tests use.
func TestSearch_WiresConcreteModelRegistry(t *testing.T) {
	reg := registry.New()
	model, err := content.NewEmbeddingModel("text-e5-real", content.ModalityText, 2, content.MetricCosine, true)
	require.NoError(t, err)
	require.NoError(t, reg.Register(*model))

	b1 := uuid.New()
	lex := &fakeLexical{}
	vec := &fakeVector{byModel: map[string][]vector.Match{"text-e5-real": {}}}
	meta := &fakeMeta{byID: map[uuid.UUID]BlockMeta{
		b1: {ContentHash: "h1", URI: "u1"},
	}}

	r := New(testLogger(t), Config{}, lex, vec, reg, &fakeEmbedder{}, newScheduler(t, 2), meta, &fakeLogWriter{})

	q := Query{Text: strp("deep learning"), QueryType: QueryText, K: 5}
	res, err := r.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.NotEmpty(t, reg.All())
	assert.Len(t, reg.ActiveModels(content.ModalityText), 1)
}
