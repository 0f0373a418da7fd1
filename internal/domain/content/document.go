// Package content is the canonical data model (spec component C1): the
// types, constructors and invariants for Documents, Segments, Blocks,
// SpeechTurns, the diagram graph, the embedding-model registry row, block
// vectors, provenance and the search audit log. This package performs no
// I/O and holds no dynamic state; every constructor either returns a valid
// entity or an *errs.InvalidEntity.
package content

import (
	"time"

	"github.com/google/uuid"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// Kind enumerates the closed set of document media kinds.
type Kind string

const (
	KindVideo    Kind = "video"
	KindSlides   Kind = "slides"
	KindDiagram  Kind = "diagram"
	KindCaptions Kind = "captions"
	KindDocument Kind = "document"
	KindImage    Kind = "image"
)

func (k Kind) valid() bool {
	switch k {
	case KindVideo, KindSlides, KindDiagram, KindCaptions, KindDocument, KindImage:
		return true
	default:
		return false
	}
}

// Document is the root of an ingested media file. It is never mutated after
// creation; a fresh sha256 on re-ingest produces a new Document.
type Document struct {
	ID           uuid.UUID
	URI          string
	SHA256       string
	Kind         Kind
	Mime         string
	ProjectScope *string // nil == global
	CreatedAt    time.Time
}

// NewDocument validates and constructs a Document. created_at is stamped by
// the caller's clock (passed in) so the data model stays free of wall-clock
// reads, matching the teacher's discipline of no implicit `time.Now()` deep
// inside domain constructors used by deterministic tests.
func NewDocument(id uuid.UUID, uri, sha256Hex string, kind Kind, mime string, projectScope *string, createdAt time.Time) (*Document, error) {
	if id == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "Document", Field: "id", Reason: "must not be nil"}
	}
	if uri == "" {
		return nil, &errs.InvalidEntity{Entity: "Document", Field: "uri", Reason: "must not be empty"}
	}
	if len(sha256Hex) != 64 {
		return nil, &errs.InvalidEntity{Entity: "Document", Field: "sha256", Reason: "must be a 64-character hex digest"}
	}
	if !kind.valid() {
		return nil, &errs.InvalidEntity{Entity: "Document", Field: "kind", Reason: "unrecognized kind"}
	}
	return &Document{
		ID:           id,
		URI:          uri,
		SHA256:       sha256Hex,
		Kind:         kind,
		Mime:         mime,
		ProjectScope: projectScope,
		CreatedAt:    createdAt,
	}, nil
}
