package content

import (
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// Modality enumerates the embedding-space modalities a model serves.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityGraph Modality = "graph"
	ModalityAudio Modality = "audio"
)

func (m Modality) valid() bool {
	switch m {
	case ModalityText, ModalityImage, ModalityGraph, ModalityAudio:
		return true
	default:
		return false
	}
}

// Metric enumerates the distance/similarity functions a vector index uses.
// Cosine and InnerProduct are higher-is-better; L2 is lower-is-better and
// must be remapped to 1/(1+d) before fusion (spec §4.8).
type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricInnerProduct Metric = "inner_product"
	MetricL2           Metric = "l2"
)

func (m Metric) valid() bool {
	switch m {
	case MetricCosine, MetricInnerProduct, MetricL2:
		return true
	default:
		return false
	}
}

// EmbeddingModel is a registry row describing one embedding space.
type EmbeddingModel struct {
	ID       string // stable identifier, e.g. "e5-small-v2"
	Modality Modality
	Dim      int
	Metric   Metric
	Active   bool
}

// NewEmbeddingModel validates and constructs a registry row.
func NewEmbeddingModel(id string, modality Modality, dim int, metric Metric, active bool) (*EmbeddingModel, error) {
	if id == "" {
		return nil, &errs.InvalidEntity{Entity: "EmbeddingModel", Field: "id", Reason: "must not be empty"}
	}
	if !modality.valid() {
		return nil, &errs.InvalidEntity{Entity: "EmbeddingModel", Field: "modality", Reason: "unrecognized modality"}
	}
	if dim <= 0 {
		return nil, &errs.InvalidEntity{Entity: "EmbeddingModel", Field: "dim", Reason: "must be a positive integer"}
	}
	if !metric.valid() {
		return nil, &errs.InvalidEntity{Entity: "EmbeddingModel", Field: "metric", Reason: "unrecognized metric"}
	}
	return &EmbeddingModel{ID: id, Modality: modality, Dim: dim, Metric: metric, Active: active}, nil
}

// RoleCompatible reports whether a block's role is plausibly produced by
// this modality, used by the registry invariant in §3 ("block role
// compatible with model modality").
func (m Modality) RoleCompatible(r Role) bool {
	switch m {
	case ModalityText:
		return r != RoleFigure
	case ModalityImage:
		return r == RoleFigure || r == RoleTable || r == RoleCaption
	case ModalityAudio:
		return r == RoleSpeech
	case ModalityGraph:
		return true
	default:
		return false
	}
}
