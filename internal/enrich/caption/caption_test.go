package caption

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
)

type fakeBackend struct {
	labels []Label
	err    error
}

func (f *fakeBackend) LabelImage(ctx context.Context, imagePath string) ([]Label, error) {
	return f.labels, f.err
}

func figureBlock(t *testing.T) *content.Block {
	t.Helper()
	b, err := content.NewBlock(uuid.New(), uuid.New(), content.RoleFigure, "/tmp/img.png", nil, nil, nil, nil, nil)
	require.NoError(t, err)
	return b
}

func TestEnricher_TagsOrderedByScore(t *testing.T) {
	backend := &fakeBackend{labels: []Label{
		{Description: "cat", Score: 0.4},
		{Description: "dog", Score: 0.9},
		{Description: "grass", Score: 0.6},
	}}
	e := New(backend, 2, 0)

	result, err := e.Enrich(context.Background(), figureBlock(t))

	require.NoError(t, err)
	require.Equal(t, []string{"dog", "grass"}, result.Tags)
	require.Contains(t, result.Caption, "dog")
	require.Contains(t, result.Caption, "grass")
	require.NotContains(t, result.Caption, "cat")
}

func TestEnricher_NoLabelsProducesEmptyCaption(t *testing.T) {
	e := New(&fakeBackend{}, 5, 0)

	result, err := e.Enrich(context.Background(), figureBlock(t))

	require.NoError(t, err)
	require.Empty(t, result.Caption)
	require.Empty(t, result.Tags)
}

func TestEnricher_MaxTagsCapsOutputEvenWithManyLabels(t *testing.T) {
	backend := &fakeBackend{labels: []Label{
		{Description: "a", Score: 0.9}, {Description: "b", Score: 0.8}, {Description: "c", Score: 0.7},
	}}
	e := New(backend, 1, 0)

	result, err := e.Enrich(context.Background(), figureBlock(t))

	require.NoError(t, err)
	require.Len(t, result.Tags, 1)
	require.Equal(t, "a", result.Tags[0])
}
