package content

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/google/uuid"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// Role enumerates the closed set of block roles.
type Role string

const (
	RoleTitle   Role = "title"
	RoleBullet  Role = "bullet"
	RoleCode    Role = "code"
	RoleTable   Role = "table"
	RoleFigure  Role = "figure"
	RoleCaption Role = "caption"
	RoleSpeech  Role = "speech"
	RoleOther   Role = "other"
)

func (r Role) valid() bool {
	switch r {
	case RoleTitle, RoleBullet, RoleCode, RoleTable, RoleFigure, RoleCaption, RoleSpeech, RoleOther:
		return true
	default:
		return false
	}
}

// Block is the smallest semantic unit inside a Segment.
type Block struct {
	ID              uuid.UUID
	SegmentID       uuid.UUID
	Role            Role
	Text            string
	Bbox            *BBox
	Time            *TimeRange
	OCRConfidence   *float64 // [0,1] or nil
	ContentHash     string   // sha256(role || text || bbox || t0 || t1), hex
}

// ContentHash computes the deterministic, canonically-ordered SHA-256 digest
// used as the block's idempotency key. The byte encoding is fixed: role,
// then text, then bbox fields as big-endian float64 bit patterns (or a
// sentinel absent-marker), then t0/t1 as big-endian int64 (or the absent
// marker). This ordering and encoding must never change without a data
// migration — it is the uniqueness key for (segment_id, content_hash).
func ContentHash(role Role, text string, bbox *BBox, tr *TimeRange) string {
	h := sha256.New()
	h.Write([]byte(role))
	h.Write([]byte{0})
	h.Write([]byte(text))
	h.Write([]byte{0})
	writeOptionalFloats(h, bbox)
	writeOptionalTimes(h, tr)
	return hex.EncodeToString(h.Sum(nil))
}

func writeOptionalFloats(h interface{ Write([]byte) (int, error) }, bbox *BBox) {
	if bbox == nil {
		h.Write([]byte{0xFF})
		return
	}
	h.Write([]byte{0x01})
	for _, f := range []float64{bbox.X, bbox.Y, bbox.W, bbox.H} {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
}

func writeOptionalTimes(h interface{ Write([]byte) (int, error) }, tr *TimeRange) {
	if tr == nil {
		h.Write([]byte{0xFF})
		return
	}
	h.Write([]byte{0x01})
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(tr.T0))
	binary.BigEndian.PutUint64(buf[8:16], uint64(tr.T1))
	h.Write(buf[:])
}

// NewBlock validates and constructs a Block per spec §3. segmentTime and
// segmentBbox are the parent segment's bounds, used to enforce containment.
func NewBlock(id, segmentID uuid.UUID, role Role, text string, bbox *BBox, tr *TimeRange, ocrConfidence *float64, segmentTime *TimeRange, segmentBbox *BBox) (*Block, error) {
	if id == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "Block", Field: "id", Reason: "must not be nil"}
	}
	if segmentID == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "Block", Field: "segment_id", Reason: "must not be nil"}
	}
	if !role.valid() {
		return nil, &errs.InvalidEntity{Entity: "Block", Field: "role", Reason: "unrecognized role"}
	}
	if bbox != nil {
		if !bbox.valid() {
			return nil, &errs.InvalidEntity{Entity: "Block", Field: "bbox", Reason: "bbox must lie within normalized [0,1] coordinates"}
		}
		if segmentBbox != nil && !segmentBbox.Contains(*bbox) {
			return nil, &errs.InvalidEntity{Entity: "Block", Field: "bbox", Reason: "block bbox must be contained in parent segment bbox"}
		}
	}
	if tr != nil {
		if !tr.valid() {
			return nil, &errs.InvalidEntity{Entity: "Block", Field: "t0/t1", Reason: "t0 must be <= t1"}
		}
		if segmentTime != nil && !segmentTime.Contains(*tr) {
			return nil, &errs.InvalidEntity{Entity: "Block", Field: "t0/t1", Reason: "block interval must lie inside parent segment interval"}
		}
	}
	if ocrConfidence != nil && (*ocrConfidence < 0 || *ocrConfidence > 1) {
		return nil, &errs.InvalidEntity{Entity: "Block", Field: "ocr_confidence", Reason: "must be in [0,1] or null"}
	}

	return &Block{
		ID:            id,
		SegmentID:     segmentID,
		Role:          role,
		Text:          text,
		Bbox:          bbox,
		Time:          tr,
		OCRConfidence: ocrConfidence,
		ContentHash:   ContentHash(role, text, bbox, tr),
	}, nil
}
