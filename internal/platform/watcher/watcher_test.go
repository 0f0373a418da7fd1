package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestWatcher_EmitsOnceFileIsQuietAndSizeStable(t *testing.T) {
	root := t.TempDir()
	cfg := Config{
		QuietPeriod:      30 * time.Millisecond,
		StabilityWindow:  20 * time.Millisecond,
		StabilitySamples: 2,
	}
	w := New(testLogger(t), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan IngestRequest, 4)

	go func() { _ = w.Watch(ctx, root, out) }()
	time.Sleep(30 * time.Millisecond) // let the root watch register

	path := filepath.Join(root, "talk.srt")
	require.NoError(t, os.WriteFile(path, []byte("1\n00:00:00,000 --> 00:00:01,000\nhello\n"), 0o644))

	select {
	case req := <-out:
		require.Equal(t, path, req.Path)
		require.Equal(t, content.KindCaptions, req.Kind)
		require.NotEmpty(t, req.SHA256Opt)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an IngestRequest to be emitted")
	}
}

func TestWatcher_SkipsUnrecognizedExtension(t *testing.T) {
	root := t.TempDir()
	cfg := Config{QuietPeriod: 20 * time.Millisecond, StabilityWindow: 10 * time.Millisecond, StabilitySamples: 2}
	w := New(testLogger(t), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan IngestRequest, 4)
	go func() { _ = w.Watch(ctx, root, out) }()
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("scratch"), 0o644))

	select {
	case req := <-out:
		t.Fatalf("expected no emission for unrecognized extension, got %+v", req)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresMatchingPatterns(t *testing.T) {
	root := t.TempDir()
	cfg := Config{
		IgnorePatterns:   []string{".*.swp"},
		QuietPeriod:      20 * time.Millisecond,
		StabilityWindow:  10 * time.Millisecond,
		StabilitySamples: 2,
	}
	w := New(testLogger(t), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan IngestRequest, 4)
	go func() { _ = w.Watch(ctx, root, out) }()
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".deck.pdf.swp"), []byte("x"), 0o644))

	select {
	case req := <-out:
		t.Fatalf("expected no emission for ignored pattern, got %+v", req)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_ReEmitsOnContentChangeOnly(t *testing.T) {
	root := t.TempDir()
	cfg := Config{QuietPeriod: 20 * time.Millisecond, StabilityWindow: 10 * time.Millisecond, StabilitySamples: 2}
	w := New(testLogger(t), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan IngestRequest, 4)
	go func() { _ = w.Watch(ctx, root, out) }()
	time.Sleep(30 * time.Millisecond)

	path := filepath.Join(root, "board.svg")
	require.NoError(t, os.WriteFile(path, []byte("<svg>a</svg>"), 0o644))

	var first IngestRequest
	select {
	case first = <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("expected first emission")
	}

	// Rewriting identical content must not re-emit.
	require.NoError(t, os.WriteFile(path, []byte("<svg>a</svg>"), 0o644))
	select {
	case req := <-out:
		t.Fatalf("expected no re-emission for unchanged content, got %+v", req)
	case <-time.After(300 * time.Millisecond):
	}

	// Changing content must re-emit with a different hash.
	require.NoError(t, os.WriteFile(path, []byte("<svg>b</svg>"), 0o644))
	select {
	case second := <-out:
		require.NotEqual(t, first.SHA256Opt, second.SHA256Opt)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a second emission after content changed")
	}
}

type fakeDedupStore struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newFakeDedupStore() *fakeDedupStore {
	return &fakeDedupStore{data: map[string]string{}}
}

func (f *fakeDedupStore) Get(_ context.Context, path string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.data[path]
	return h, ok, nil
}

func (f *fakeDedupStore) Set(_ context.Context, path, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[path] = hash
	f.sets++
	return nil
}

// TestWatcher_MirrorsDedupStateToDedupStore exercises the optional DedupStore
// wiring a durable backend (e.g. redisdedup.Store) plugs into: every first
// emission for a path must also land in the store, the same record the
// in-memory lastHash map keeps.
func TestWatcher_MirrorsDedupStateToDedupStore(t *testing.T) {
	root := t.TempDir()
	cfg := Config{QuietPeriod: 20 * time.Millisecond, StabilityWindow: 10 * time.Millisecond, StabilitySamples: 2}
	dedup := newFakeDedupStore()
	w := NewWithDedup(testLogger(t), cfg, dedup)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan IngestRequest, 4)
	go func() { _ = w.Watch(ctx, root, out) }()
	time.Sleep(30 * time.Millisecond)

	path := filepath.Join(root, "talk.srt")
	require.NoError(t, os.WriteFile(path, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), 0o644))

	var req IngestRequest
	select {
	case req = <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an emission")
	}

	hash, ok, err := dedup.Get(ctx, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, req.SHA256Opt, hash)
}
