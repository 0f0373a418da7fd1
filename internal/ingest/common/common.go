// Package common holds the shared contract for the per-kind ingestors (spec
// component C3): a single Document together with its Segments, Blocks,
// SpeechTurns and (for diagrams) graph nodes/edges, plus a per-block
// provenance record seeded by the ingestor step.
package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// Result is what one call to Ingestor.Ingest produces.
type Result struct {
	Document        *content.Document
	Segments        []*content.Segment
	Blocks          []*content.Block
	SpeechTurns     []*content.SpeechTurn
	DiagramEntities []*content.DiagramEntity
	DiagramEdges    []*content.DiagramEdge
	Provenance      map[uuid.UUID]content.Provenance // keyed by Block.ID
	Warnings        []string                         // per-segment failures that did not abort the document (§4.3)
}

// Ingestor is the common contract every media-kind variant implements.
// Ingest must be idempotent: identical byte content at path always yields
// the same Document.SHA256, with storage responsible for deduplication on
// that key (spec §4.3).
type Ingestor interface {
	Ingest(ctx context.Context, path string) (*Result, error)
}

// Clock abstracts wall-clock reads so ingestors stay deterministic in tests.
type Clock func() time.Time

// HashFile computes the sha256 hex digest of a file's full contents, the
// Document-level idempotency key.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &errs.IngestorError{Path: path, Reason: "open for hashing", Err: err}
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", &errs.IngestorError{Path: path, Reason: "read for hashing", Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SeedProvenance builds the initial Provenance value for a freshly produced
// block, recording only the ingestor identity; enrichers append their own
// steps later via Provenance.Append.
func SeedProvenance(blockID uuid.UUID, ingestorID, sourceURI, sourceSHA256 string) content.Provenance {
	return content.Provenance{
		BlockID:      blockID,
		IngestorID:   ingestorID,
		SourceURI:    sourceURI,
		SourceSHA256: sourceSHA256,
	}
}
