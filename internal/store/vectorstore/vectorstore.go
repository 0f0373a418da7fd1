// Package vectorstore is the durable mirror of BlockVector rows backing the
// in-process HNSW graphs (internal/index/vector): spec §4.8 requires that
// "index state may be lost without data loss" because it can always be
// rebuilt from here. Grounded directly on the teacher's hand-rolled
// Qdrant-over-HTTP adapter (internal/platform/qdrant/vector_store.go),
// adapted from the teacher's generic Vector/VectorMatch shape to this
// system's content.BlockVector and scope-filter vocabulary.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
	"github.com/rivergate/mediareef/internal/platform/logger"
)

const (
	payloadModelIDKey   = "_mr_model_id"
	payloadBlockIDKey    = "_mr_block_id"
	payloadScopeKey      = "_mr_scope"
	payloadIndexedAtKey  = "_mr_indexed_at"
	maxErrorBodyBytes    = 1024
)

var pointNamespaceUUID = uuid.MustParse("5f2c9b3e-4b7a-4d2a-9a1c-6b8f0e6d9a11")

// Store is the durable mirror contract the vector index rebuilds from.
type Store interface {
	Upsert(ctx context.Context, vec content.BlockVector, scope *string) error
	ListByModel(ctx context.Context, modelID string) ([]content.BlockVector, error)
	DeleteBlock(ctx context.Context, blockID uuid.UUID) error
}

type httpStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

func New(log *logger.Logger, cfg Config) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &httpStore{
		log:     log.With("service", "VectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *httpStore) Upsert(ctx context.Context, vec content.BlockVector, scope *string) error {
	const op = "vectorstore_upsert"
	payload := map[string]any{
		payloadModelIDKey:  vec.ModelID,
		payloadBlockIDKey:  vec.BlockID.String(),
		payloadIndexedAtKey: vec.IndexedAt.UTC().Format(time.RFC3339Nano),
	}
	if scope != nil {
		payload[payloadScopeKey] = *scope
	}

	point := map[string]any{
		"id":      s.pointID(vec.ModelID, vec.BlockID),
		"vector":  vec.Vector,
		"payload": payload,
	}
	req := map[string]any{"points": []any{point}}
	if err := s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil); err != nil {
		return &errs.StorageError{Op: op, Err: err}
	}
	return nil
}

func (s *httpStore) ListByModel(ctx context.Context, modelID string) ([]content.BlockVector, error) {
	const op = "vectorstore_list"
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": payloadModelIDKey, "match": map[string]any{"value": modelID}},
			},
		},
		"with_payload": true,
		"with_vector":  true,
		"limit":        10000,
	}
	var result struct {
		Points []struct {
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/scroll"), req, &result); err != nil {
		return nil, &errs.StorageError{Op: op, Err: err}
	}

	out := make([]content.BlockVector, 0, len(result.Points))
	for _, p := range result.Points {
		blockIDStr, _ := p.Payload[payloadBlockIDKey].(string)
		blockID, err := uuid.Parse(blockIDStr)
		if err != nil {
			continue
		}
		indexedAt := time.Now().UTC()
		if raw, ok := p.Payload[payloadIndexedAtKey].(string); ok {
			if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				indexedAt = parsed
			}
		}
		out = append(out, content.BlockVector{BlockID: blockID, ModelID: modelID, Vector: p.Vector, IndexedAt: indexedAt})
	}
	return out, nil
}

func (s *httpStore) DeleteBlock(ctx context.Context, blockID uuid.UUID) error {
	const op = "vectorstore_delete"
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": payloadBlockIDKey, "match": map[string]any{"value": blockID.String()}},
			},
		},
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil); err != nil {
		return &errs.StorageError{Op: op, Err: err}
	}
	return nil
}

func (s *httpStore) pointID(modelID string, blockID uuid.UUID) string {
	return uuid.NewSHA1(pointNamespaceUUID, []byte(modelID+"|"+blockID.String())).String()
}

func (s *httpStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func (s *httpStore) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vectorstore http status=%d body=%q", resp.StatusCode, truncate(raw))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func truncate(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
