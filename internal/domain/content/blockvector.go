package content

import (
	"time"

	"github.com/google/uuid"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// BlockVector is a dense embedding for one block under one model. At most
// one exists per (block_id, model_id); it is replaced idempotently on
// re-index and deleted along with its block.
type BlockVector struct {
	BlockID   uuid.UUID
	ModelID   string
	Vector    []float32
	IndexedAt time.Time
}

// NewBlockVector validates the vector's dimensionality and the block's role
// against the model before constructing the row, per §3's invariant.
func NewBlockVector(blockID uuid.UUID, model *EmbeddingModel, vector []float32, blockRole Role, indexedAt time.Time) (*BlockVector, error) {
	if blockID == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "BlockVector", Field: "block_id", Reason: "must not be nil"}
	}
	if model == nil {
		return nil, &errs.InvalidEntity{Entity: "BlockVector", Field: "model_id", Reason: "model must exist"}
	}
	if len(vector) != model.Dim {
		return nil, &errs.InvalidEntity{Entity: "BlockVector", Field: "vector", Reason: "length must equal model dimensionality"}
	}
	if !model.Modality.RoleCompatible(blockRole) {
		return nil, &errs.InvalidEntity{Entity: "BlockVector", Field: "vector", Reason: "block role is not compatible with model modality"}
	}
	return &BlockVector{BlockID: blockID, ModelID: model.ID, Vector: vector, IndexedAt: indexedAt}, nil
}
