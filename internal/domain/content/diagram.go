package content

import (
	"github.com/google/uuid"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// DiagramEntity is one node of a diagram's graph structure. Diagrams are
// stored as two flat relations keyed by id (per §9: "no in-memory ownership
// cycles"); traversal follows id lookups rather than pointer graphs.
type DiagramEntity struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Label      string
	EntityKind string
	Bbox       *BBox
}

func NewDiagramEntity(id, documentID uuid.UUID, label, entityKind string, bbox *BBox) (*DiagramEntity, error) {
	if id == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "DiagramEntity", Field: "id", Reason: "must not be nil"}
	}
	if documentID == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "DiagramEntity", Field: "document_id", Reason: "must not be nil"}
	}
	if label == "" {
		return nil, &errs.InvalidEntity{Entity: "DiagramEntity", Field: "label", Reason: "must not be empty"}
	}
	if bbox != nil && !bbox.valid() {
		return nil, &errs.InvalidEntity{Entity: "DiagramEntity", Field: "bbox", Reason: "bbox must lie within normalized [0,1] coordinates"}
	}
	return &DiagramEntity{ID: id, DocumentID: documentID, Label: label, EntityKind: entityKind, Bbox: bbox}, nil
}

// DiagramEdge connects two DiagramEntity nodes belonging to the same document.
type DiagramEdge struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	SrcEntityID   uuid.UUID
	DstEntityID   uuid.UUID
	Label         string
	Directed      bool
}

// NewDiagramEdge validates that both endpoints exist in the given entity set
// for the same document, per §3's invariant.
func NewDiagramEdge(id, documentID, src, dst uuid.UUID, label string, directed bool, entitiesByID map[uuid.UUID]*DiagramEntity) (*DiagramEdge, error) {
	if id == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "DiagramEdge", Field: "id", Reason: "must not be nil"}
	}
	if documentID == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "DiagramEdge", Field: "document_id", Reason: "must not be nil"}
	}
	srcEntity, ok := entitiesByID[src]
	if !ok || srcEntity.DocumentID != documentID {
		return nil, &errs.InvalidEntity{Entity: "DiagramEdge", Field: "src_entity_id", Reason: "source entity must exist in the same document"}
	}
	dstEntity, ok := entitiesByID[dst]
	if !ok || dstEntity.DocumentID != documentID {
		return nil, &errs.InvalidEntity{Entity: "DiagramEdge", Field: "dst_entity_id", Reason: "destination entity must exist in the same document"}
	}
	return &DiagramEdge{
		ID:          id,
		DocumentID:  documentID,
		SrcEntityID: src,
		DstEntityID: dst,
		Label:       label,
		Directed:    directed,
	}, nil
}
