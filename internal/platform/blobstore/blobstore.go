// Package blobstore provides a narrow Store interface for mirroring
// render-cache artifacts (sampled video frames, rendered slide bitmaps,
// rasterized diagram overviews) to durable object storage, with local
// filesystem as the default concrete implementation and an optional GCS
// backend for deployments that configure one — grounded on the teacher's
// internal/platform/gcp/bucket.go BucketService (upload/download/delete
// over a *storage.Client), narrowed to the three operations this system's
// ingestors actually need and stripped of the teacher's multi-bucket,
// CDN-domain, and emulator-mode machinery, none of which spec §4
// requires.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/rivergate/mediareef/internal/platform/logger"
)

// Store is the object-storage contract render-cache mirroring depends on.
// Nil is a valid Store reference for callers that check before using one
// (mirroring is optional infrastructure, not a hard ingest dependency).
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Open returns a GCS-backed Store when BLOBSTORE_GCS_BUCKET is set in the
// environment, otherwise a local filesystem Store rooted at baseDir —
// local is the default so a single-machine deployment never needs a GCP
// project to run the ingest pipeline.
func Open(ctx context.Context, baseDir string, log *logger.Logger) (Store, error) {
	bucket := strings.TrimSpace(os.Getenv("BLOBSTORE_GCS_BUCKET"))
	if bucket == "" {
		return NewLocalStore(baseDir)
	}
	return NewGCSStore(ctx, bucket, log)
}

// LocalStore persists blobs as files under a root directory, keyed by a
// slash-separated key that becomes the relative path.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("blobstore: local root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("blobstore: empty key")
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("blobstore: create dir: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("blobstore: create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("blobstore: write file: %w", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open file: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: remove file: %w", err)
	}
	return nil
}

// GCSStore persists blobs as objects in a single GCS bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

func NewGCSStore(ctx context.Context, bucket string, log *logger.Logger) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("blobstore: gcs bucket name must not be empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: new gcs client: %w", err)
	}
	if log != nil {
		log.Info("blobstore using GCS backend", "bucket", bucket)
	}
	return &GCSStore{client: client, bucket: bucket, log: log}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("blobstore: write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blobstore: close gcs writer: %w", err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open gcs reader: %w", err)
	}
	return r, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("blobstore: delete gcs object: %w", err)
	}
	return nil
}
