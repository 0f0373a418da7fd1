// Package registry implements the Embedding Model Registry (spec component
// C9): a small process-wide catalog of embedding spaces, grounded on the
// same copy-on-read discipline the teacher's domain-model registries use
// (snapshot the map under lock, return copies, never hand out internal
// pointers a caller could mutate).
package registry

import (
	"fmt"
	"sync"

	"github.com/rivergate/mediareef/internal/domain/content"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// Registry is the single process-wide instance named in spec §9 ("the
// EmbeddingModel registry... has a single init on process start").
type Registry struct {
	mu     sync.RWMutex
	models map[string]content.EmbeddingModel
}

func New() *Registry {
	return &Registry{models: make(map[string]content.EmbeddingModel)}
}

// Register adds a new model. Re-registering an existing id with a changed
// dim or metric is rejected per §4.9 ("changes are forbidden to an
// existing model's dim or metric"); re-registering with identical dim and
// metric is accepted and replaces the stored record, including its Active
// flag (e.g. reactivating or deactivating).
func (r *Registry) Register(model content.EmbeddingModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.models[model.ID]; ok {
		if existing.Dim != model.Dim || existing.Metric != model.Metric {
			return &errs.InvalidEntity{Entity: "EmbeddingModel", Field: "id", Reason: "dim/metric cannot change for an existing id; deactivate and register a new id"}
		}
	}
	r.models[model.ID] = model
	return nil
}

// Deactivate marks a model inactive. Its vectors remain queryable
// (historical search, §4.9) but no new vectors should be written for it —
// enforced by callers checking Active before writing, not by the registry
// itself.
func (r *Registry) Deactivate(modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[modelID]
	if !ok {
		return fmt.Errorf("embedding model %q: %w", modelID, errs.ErrNotFound)
	}
	m.Active = false
	r.models[modelID] = m
	return nil
}

// ActiveModels returns a copy of every active model serving modality.
func (r *Registry) ActiveModels(modality content.Modality) []content.EmbeddingModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []content.EmbeddingModel
	for _, m := range r.models {
		if m.Active && m.Modality == modality {
			out = append(out, m)
		}
	}
	return out
}

// Get returns a copy of the model by id, regardless of active state — used
// by the vector index and the historical-search path, where a deactivated
// model's vectors must still resolve to a dimensionality and metric.
func (r *Registry) Get(modelID string) (content.EmbeddingModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[modelID]
	return m, ok
}

// All returns a copy of every registered model, active or not.
func (r *Registry) All() []content.EmbeddingModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]content.EmbeddingModel, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	return out
}
