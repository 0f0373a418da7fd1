package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "frames/doc-1/0001.jpg", bytes.NewReader([]byte("frame-bytes"))))

	r, err := store.Get(ctx, "frames/doc-1/0001.jpg")
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "frame-bytes", string(got))
}

func TestLocalStore_PutCreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "a/b/c/d.bin", bytes.NewReader([]byte("x"))))
	_, err = os.Stat(filepath.Join(dir, "a", "b", "c", "d.bin"))
	require.NoError(t, err)
}

func TestLocalStore_DeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "key", bytes.NewReader([]byte("v"))))
	require.NoError(t, store.Delete(context.Background(), "key"))
	require.NoError(t, store.Delete(context.Background(), "key"))
}

func TestLocalStore_GetMissingKeyReturnsError(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "never-written")
	require.Error(t, err)
}

func TestOpen_NoGCSEnvReturnsLocalStore(t *testing.T) {
	t.Setenv("BLOBSTORE_GCS_BUCKET", "")
	dir := t.TempDir()
	s, err := Open(context.Background(), dir, nil)
	require.NoError(t, err)
	_, ok := s.(*LocalStore)
	assert.True(t, ok)
}
