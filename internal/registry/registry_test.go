package registry

import (
	"errors"
	"testing"

	"github.com/rivergate/mediareef/internal/domain/content"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/stretchr/testify/require"
)

func mustModel(t *testing.T, id string, modality content.Modality, dim int, metric content.Metric, active bool) content.EmbeddingModel {
	t.Helper()
	m, err := content.NewEmbeddingModel(id, modality, dim, metric, active)
	require.NoError(t, err)
	return *m
}

func TestRegister_NewModelBecomesActive(t *testing.T) {
	r := New()
	m := mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, true)
	require.NoError(t, r.Register(m))

	active := r.ActiveModels(content.ModalityText)
	require.Len(t, active, 1)
	require.Equal(t, "text-v1", active[0].ID)
}

func TestRegister_RejectsDimChangeForExistingID(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, true)))

	changed := mustModel(t, "text-v1", content.ModalityText, 1024, content.MetricCosine, true)
	err := r.Register(changed)
	require.Error(t, err)
	var invalid *errs.InvalidEntity
	require.ErrorAs(t, err, &invalid)
}

func TestRegister_RejectsMetricChangeForExistingID(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, true)))

	changed := mustModel(t, "text-v1", content.ModalityText, 768, content.MetricL2, true)
	require.Error(t, r.Register(changed))
}

func TestRegister_SameDimAndMetricReplacesRecord(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, true)))
	require.NoError(t, r.Register(mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, false)))

	require.Empty(t, r.ActiveModels(content.ModalityText))
}

func TestDeactivate_RemovesFromActiveModelsButKeepsGettable(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, true)))

	require.NoError(t, r.Deactivate("text-v1"))
	require.Empty(t, r.ActiveModels(content.ModalityText))

	m, ok := r.Get("text-v1")
	require.True(t, ok)
	require.False(t, m.Active)
}

func TestDeactivate_UnknownIDReturnsNotFound(t *testing.T) {
	r := New()
	err := r.Deactivate("missing")
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestActiveModels_FiltersByModality(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, true)))
	require.NoError(t, r.Register(mustModel(t, "image-v1", content.ModalityImage, 512, content.MetricCosine, true)))

	textModels := r.ActiveModels(content.ModalityText)
	require.Len(t, textModels, 1)
	require.Equal(t, "text-v1", textModels[0].ID)
}

func TestNoTwoActiveModelsShareID(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, true)))
	require.NoError(t, r.Register(mustModel(t, "text-v1", content.ModalityText, 768, content.MetricCosine, true)))

	require.Len(t, r.All(), 1)
}
