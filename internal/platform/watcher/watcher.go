// Package watcher implements the file watcher (spec component C2): it turns
// raw filesystem events under a root directory into a debounced, size-stable
// stream of IngestRequest values routed by file kind.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rivergate/mediareef/internal/domain/content"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/rivergate/mediareef/internal/platform/logger"
)

// IngestRequest is one debounced, stability-confirmed file ready for an
// ingestor to pick up.
type IngestRequest struct {
	Path      string
	Kind      content.Kind
	SHA256Opt string // empty until computed; callers may compute lazily
}

// Config holds the tunables named in spec §4.2 / §6 (watch.*).
type Config struct {
	IgnorePatterns    []string
	QuietPeriod       time.Duration
	StabilityWindow   time.Duration
	StabilitySamples  int
	RetryInitialDelay time.Duration
	RetryFactor       float64
	RetryMaxDelay     time.Duration
	RetryMaxAttempts  int
}

func (c Config) withDefaults() Config {
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = time.Second
	}
	if c.StabilityWindow <= 0 {
		c.StabilityWindow = 2 * time.Second
	}
	if c.StabilitySamples <= 0 {
		c.StabilitySamples = 2
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = 100 * time.Millisecond
	}
	if c.RetryFactor <= 0 {
		c.RetryFactor = 2
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 5
	}
	return c
}

// extensionKinds maps a lowercased file extension (including the leading
// dot) to the Document kind it routes to. Extensions absent from this table
// drop with a logged skip, per spec §4.2 "Routing".
var extensionKinds = map[string]content.Kind{
	".mp4":     content.KindVideo,
	".mov":     content.KindVideo,
	".avi":     content.KindVideo,
	".mkv":     content.KindVideo,
	".pdf":     content.KindSlides,
	".key":     content.KindSlides,
	".svg":     content.KindDiagram,
	".graphml": content.KindDiagram,
	".srt":     content.KindCaptions,
	".vtt":     content.KindCaptions,
}

// Watcher watches a root directory tree and emits IngestRequest values once
// each changed path has gone quiet and its size has stabilized.
type Watcher interface {
	// Watch blocks, emitting IngestRequests on out until ctx is cancelled or
	// a permanent error occurs on the underlying fs notifier.
	Watch(ctx context.Context, root string, out chan<- IngestRequest) error
}

// DedupStore persists the last-emitted content hash per path outside this
// process, so a watcher restart does not re-emit a path whose content hasn't
// actually changed. It is optional: when nil, the in-memory lastHash map is
// the only dedup state, same as before this existed.
type DedupStore interface {
	Get(ctx context.Context, path string) (hash string, ok bool, err error)
	Set(ctx context.Context, path, hash string) error
}

type fsWatcher struct {
	log   *logger.Logger
	cfg   Config
	Dedup DedupStore // optional; nil keeps dedup state in-memory only

	mu       sync.Mutex
	lastHash map[string]string // path -> last-emitted content sha256
	pending  map[string]context.CancelFunc
}

// New constructs a Watcher backed by fsnotify with in-memory-only dedup
// state.
func New(log *logger.Logger, cfg Config) Watcher {
	return NewWithDedup(log, cfg, nil)
}

// NewWithDedup constructs a Watcher backed by fsnotify whose debounce dedup
// state is mirrored to dedup, a durable store (e.g. Redis) surviving process
// restarts. A nil dedup behaves exactly like New.
func NewWithDedup(log *logger.Logger, cfg Config, dedup DedupStore) Watcher {
	return &fsWatcher{
		log:      log,
		cfg:      cfg.withDefaults(),
		Dedup:    dedup,
		lastHash: map[string]string{},
		pending:  map[string]context.CancelFunc{},
	}
}

func (w *fsWatcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pat := range w.cfg.IgnorePatterns {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}

func kindForPath(path string) (content.Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	k, ok := extensionKinds[ext]
	return k, ok
}

func (w *fsWatcher) Watch(ctx context.Context, root string, out chan<- IngestRequest) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return &errs.IngestRequestError{Path: root, Reason: "cannot start filesystem watcher: " + err.Error()}
	}
	defer fsw.Close()

	if err := addRecursive(fsw, root); err != nil {
		return &errs.IngestRequestError{Path: root, Reason: "cannot watch root: " + err.Error()}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, ev, out)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher: fsnotify error", "err", err)
		}
	}
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *fsWatcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event, out chan<- IngestRequest) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	path := ev.Name
	if w.ignored(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return // transient: file may already be gone by the time we stat it
	}
	if info.IsDir() {
		_ = fsw.Add(path)
		return
	}
	kind, ok := kindForPath(path)
	if !ok {
		w.log.Debug("watcher: skipping unrecognized extension", "path", path)
		return
	}

	w.mu.Lock()
	if cancel, exists := w.pending[path]; exists {
		cancel()
	}
	debounceCtx, cancel := context.WithCancel(ctx)
	w.pending[path] = cancel
	w.mu.Unlock()

	go w.debounceAndEmit(debounceCtx, path, kind, out)
}

// debounceAndEmit waits for quiet_period since the most recent event on
// path, then confirms size stability across stability_samples spaced by
// stability_window/(samples-1), then emits once — only if the path's content
// hash is new or has changed since the last emission for that path (spec
// §4.2 "On re-emission of a previously seen path whose content hash has
// changed, emit a new request").
func (w *fsWatcher) debounceAndEmit(ctx context.Context, path string, kind content.Kind, out chan<- IngestRequest) {
	defer func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
	}()

	timer := time.NewTimer(w.cfg.QuietPeriod)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	stable, err := w.awaitSizeStability(ctx, path)
	if err != nil {
		w.log.Warn("watcher: size stability check failed", "path", path, "err", err)
		return
	}
	if !stable {
		return
	}

	hash, err := w.hashWithRetry(ctx, path)
	if err != nil {
		w.log.Warn("watcher: giving up on path", "path", path, "err", err)
		return
	}

	w.mu.Lock()
	prev, seen := w.lastHash[path]
	w.mu.Unlock()
	if !seen && w.Dedup != nil {
		if remoteHash, ok, err := w.Dedup.Get(ctx, path); err != nil {
			w.log.Warn("watcher: dedup store get failed, falling back to in-memory state", "path", path, "err", err)
		} else if ok {
			prev, seen = remoteHash, true
		}
	}
	if seen && prev == hash {
		return
	}

	w.mu.Lock()
	w.lastHash[path] = hash
	w.mu.Unlock()
	if w.Dedup != nil {
		if err := w.Dedup.Set(ctx, path, hash); err != nil {
			w.log.Warn("watcher: dedup store set failed (continuing with in-memory state)", "path", path, "err", err)
		}
	}

	select {
	case out <- IngestRequest{Path: path, Kind: kind, SHA256Opt: hash}:
	case <-ctx.Done():
	}
}

// awaitSizeStability samples the file size stability_samples times spaced
// stability_window/(samples-1) apart (a single sample with no wait when
// samples is 1) and reports whether every sample agreed.
func (w *fsWatcher) awaitSizeStability(ctx context.Context, path string) (bool, error) {
	samples := w.cfg.StabilitySamples
	interval := w.cfg.StabilityWindow
	if samples > 1 {
		interval = w.cfg.StabilityWindow / time.Duration(samples-1)
	}

	var last int64 = -1
	for i := 0; i < samples; i++ {
		if i > 0 {
			t := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return false, ctx.Err()
			case <-t.C:
			}
		}
		info, err := os.Stat(path)
		if err != nil {
			return false, err
		}
		if last != -1 && info.Size() != last {
			return false, nil
		}
		last = info.Size()
	}
	return true, nil
}

// hashWithRetry computes a file's content sha256, retrying transient I/O
// errors with capped exponential backoff per spec §4.2 "Failure semantics".
// Permanent errors (not found, permission after the configured attempts)
// surface wrapped in *errs.IngestRequestError and are not retried further.
func (w *fsWatcher) hashWithRetry(ctx context.Context, path string) (string, error) {
	delay := w.cfg.RetryInitialDelay
	var lastErr error
	for attempt := 0; attempt <= w.cfg.RetryMaxAttempts; attempt++ {
		h, err := hashFile(path)
		if err == nil {
			return h, nil
		}
		lastErr = err
		if os.IsNotExist(err) {
			return "", &errs.IngestRequestError{Path: path, Reason: "file no longer exists"}
		}
		if attempt == w.cfg.RetryMaxAttempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
		delay = time.Duration(float64(delay) * w.cfg.RetryFactor)
		if delay > w.cfg.RetryMaxDelay {
			delay = w.cfg.RetryMaxDelay
		}
	}
	return "", &errs.IngestRequestError{Path: path, Reason: "transient I/O error exhausted retries: " + lastErr.Error()}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
