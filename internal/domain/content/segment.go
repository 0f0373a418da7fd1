package content

import (
	"github.com/google/uuid"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// SegmentType enumerates the closed set of segment kinds.
type SegmentType string

const (
	SegmentSlide  SegmentType = "slide"
	SegmentScene  SegmentType = "scene"
	SegmentSpeech SegmentType = "speech"
	SegmentDiagram SegmentType = "diagram"
)

func (t SegmentType) valid() bool {
	switch t {
	case SegmentSlide, SegmentScene, SegmentSpeech, SegmentDiagram:
		return true
	default:
		return false
	}
}

// BBox is a normalized (x, y, w, h) box in [0,1] page/frame coordinates.
type BBox struct {
	X, Y, W, H float64
}

func (b BBox) valid() bool {
	return b.X >= 0 && b.Y >= 0 && b.W >= 0 && b.H >= 0 &&
		b.X+b.W <= 1.0+1e-9 && b.Y+b.H <= 1.0+1e-9
}

// Contains reports whether other is fully contained within b (used to check
// block bbox ⊆ segment bbox).
func (b BBox) Contains(other BBox) bool {
	const eps = 1e-9
	return other.X+eps >= b.X &&
		other.Y+eps >= b.Y &&
		other.X+other.W <= b.X+b.W+eps &&
		other.Y+other.H <= b.Y+b.H+eps
}

// TimeRange is a half-open-by-convention millisecond interval; t0 <= t1.
type TimeRange struct {
	T0, T1 int64
}

func (r TimeRange) valid() bool { return r.T0 <= r.T1 }

// Contains reports whether other lies inside r (inclusive).
func (r TimeRange) Contains(other TimeRange) bool {
	return other.T0 >= r.T0 && other.T1 <= r.T1
}

// Overlaps reports whether the two ranges share any instant.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.T0 <= other.T1 && other.T0 <= r.T1
}

// Segment is a time and/or space slice of a Document.
type Segment struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	SegmentType  SegmentType
	Time         *TimeRange // t0/t1; both set or neither
	Bbox         *BBox
	QualityScore float64 // [0,1]
	ProjectScope *string
}

// NewSegment validates and constructs a Segment per spec §3.
func NewSegment(id, documentID uuid.UUID, segType SegmentType, tr *TimeRange, bbox *BBox, quality float64, projectScope *string) (*Segment, error) {
	if id == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "Segment", Field: "id", Reason: "must not be nil"}
	}
	if documentID == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "Segment", Field: "document_id", Reason: "must not be nil"}
	}
	if !segType.valid() {
		return nil, &errs.InvalidEntity{Entity: "Segment", Field: "segment_type", Reason: "unrecognized segment_type"}
	}
	if tr != nil && !tr.valid() {
		return nil, &errs.InvalidEntity{Entity: "Segment", Field: "t0/t1", Reason: "t0 must be <= t1"}
	}
	if bbox != nil && !bbox.valid() {
		return nil, &errs.InvalidEntity{Entity: "Segment", Field: "bbox", Reason: "bbox must lie within normalized [0,1] coordinates"}
	}
	if (segType == SegmentSlide || segType == SegmentDiagram) && tr == nil && bbox == nil {
		return nil, &errs.InvalidEntity{Entity: "Segment", Field: "t0/bbox", Reason: "slide and diagram segments require at least one of time or bbox"}
	}
	if quality < 0 || quality > 1 {
		return nil, &errs.InvalidEntity{Entity: "Segment", Field: "quality_score", Reason: "must be in [0,1]"}
	}
	return &Segment{
		ID:           id,
		DocumentID:   documentID,
		SegmentType:  segType,
		Time:         tr,
		Bbox:         bbox,
		QualityScore: quality,
		ProjectScope: projectScope,
	}, nil
}

// OverlapsWindow reports whether two scene-like segments' time ranges
// overlap; used by ingestors to enforce the half-open-scene invariant.
func OverlapsWindow(a, b TimeRange) bool {
	return a.T0 < b.T1 && b.T0 < a.T1
}
