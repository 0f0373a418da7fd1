package vision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
)

type fakeBackend struct {
	text string
	conf float64
	err  error
}

func (f *fakeBackend) RecognizeText(ctx context.Context, imagePath string) (string, float64, error) {
	return f.text, f.conf, f.err
}

func testBlock(t *testing.T, path string, role content.Role) *content.Block {
	t.Helper()
	b, err := content.NewBlock(uuid.New(), uuid.New(), role, path, nil, nil, nil, nil, nil)
	require.NoError(t, err)
	return b
}

func TestEnricher_AllowedRoles(t *testing.T) {
	e := New(&fakeBackend{}, 0)
	roles := e.AllowedRoles()
	require.Contains(t, roles, content.RoleFigure)
	require.Contains(t, roles, content.RoleTable)
	require.NotContains(t, roles, content.RoleTitle)
}

func TestEnricher_EnrichReturnsTextAndConfidence(t *testing.T) {
	e := New(&fakeBackend{text: "hello world", conf: 0.92}, 0)
	block := testBlock(t, "/tmp/unused.png", content.RoleFigure)

	result, err := e.Enrich(context.Background(), block)

	require.NoError(t, err)
	require.Equal(t, "hello world", result.ExtractedText)
	require.NotNil(t, result.OCRConfidence)
	require.InDelta(t, 0.92, *result.OCRConfidence, 1e-9)
}

func TestGCPBackend_ReadsImageBytesBeforeDelegating(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte("fake-png-bytes"), 0o644))

	fake := &recordingVisionClient{text: "ocr text", conf: 0.5}
	backend := NewGCPBackend(fake)

	text, conf, err := backend.RecognizeText(context.Background(), path)

	require.NoError(t, err)
	require.Equal(t, "ocr text", text)
	require.InDelta(t, 0.5, conf, 1e-9)
	require.Equal(t, []byte("fake-png-bytes"), fake.gotBytes)
}

type recordingVisionClient struct {
	gotBytes []byte
	text     string
	conf     float64
}

func (r *recordingVisionClient) DetectDocumentText(ctx context.Context, imageBytes []byte) (string, float64, error) {
	r.gotBytes = imageBytes
	return r.text, r.conf, nil
}
