package postgres

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/rivergate/mediareef/internal/domain/content"
)

func bboxToRow(b *content.BBox) (x, y, w, h *float64) {
	if b == nil {
		return nil, nil, nil, nil
	}
	return &b.X, &b.Y, &b.W, &b.H
}

func bboxFromRow(x, y, w, h *float64) *content.BBox {
	if x == nil || y == nil || w == nil || h == nil {
		return nil
	}
	return &content.BBox{X: *x, Y: *y, W: *w, H: *h}
}

func timeRangeToRow(tr *content.TimeRange) (t0, t1 *int64) {
	if tr == nil {
		return nil, nil
	}
	return &tr.T0, &tr.T1
}

func timeRangeFromRow(t0, t1 *int64) *content.TimeRange {
	if t0 == nil || t1 == nil {
		return nil
	}
	return &content.TimeRange{T0: *t0, T1: *t1}
}

func DocumentToRow(d *content.Document) DocumentRow {
	return DocumentRow{
		ID:           d.ID,
		URI:          d.URI,
		SHA256:       d.SHA256,
		Kind:         string(d.Kind),
		Mime:         d.Mime,
		ProjectScope: d.ProjectScope,
		CreatedAt:    d.CreatedAt,
	}
}

func DocumentFromRow(r DocumentRow) *content.Document {
	return &content.Document{
		ID:           r.ID,
		URI:          r.URI,
		SHA256:       r.SHA256,
		Kind:         content.Kind(r.Kind),
		Mime:         r.Mime,
		ProjectScope: r.ProjectScope,
		CreatedAt:    r.CreatedAt,
	}
}

func SegmentToRow(s *content.Segment) SegmentRow {
	t0, t1 := timeRangeToRow(s.Time)
	x, y, w, h := bboxToRow(s.Bbox)
	return SegmentRow{
		ID:           s.ID,
		DocumentID:   s.DocumentID,
		SegmentType:  string(s.SegmentType),
		T0:           t0,
		T1:           t1,
		BboxX:        x,
		BboxY:        y,
		BboxW:        w,
		BboxH:        h,
		QualityScore: s.QualityScore,
		ProjectScope: s.ProjectScope,
	}
}

func SegmentFromRow(r SegmentRow) *content.Segment {
	return &content.Segment{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		SegmentType:  content.SegmentType(r.SegmentType),
		Time:         timeRangeFromRow(r.T0, r.T1),
		Bbox:         bboxFromRow(r.BboxX, r.BboxY, r.BboxW, r.BboxH),
		QualityScore: r.QualityScore,
		ProjectScope: r.ProjectScope,
	}
}

func BlockToRow(b *content.Block) BlockRow {
	t0, t1 := timeRangeToRow(b.Time)
	x, y, w, h := bboxToRow(b.Bbox)
	return BlockRow{
		ID:            b.ID,
		SegmentID:     b.SegmentID,
		Role:          string(b.Role),
		Text:          b.Text,
		BboxX:         x,
		BboxY:         y,
		BboxW:         w,
		BboxH:         h,
		T0:            t0,
		T1:            t1,
		OCRConfidence: b.OCRConfidence,
		ContentHash:   b.ContentHash,
	}
}

func BlockFromRow(r BlockRow) *content.Block {
	return &content.Block{
		ID:            r.ID,
		SegmentID:     r.SegmentID,
		Role:          content.Role(r.Role),
		Text:          r.Text,
		Bbox:          bboxFromRow(r.BboxX, r.BboxY, r.BboxW, r.BboxH),
		Time:          timeRangeFromRow(r.T0, r.T1),
		OCRConfidence: r.OCRConfidence,
		ContentHash:   r.ContentHash,
	}
}

func SpeechTurnToRow(t *content.SpeechTurn) (SpeechTurnRow, error) {
	wt, err := json.Marshal(t.WordTimings)
	if err != nil {
		return SpeechTurnRow{}, err
	}
	return SpeechTurnRow{
		ID:          t.ID,
		SegmentID:   t.SegmentID,
		SpeakerID:   t.SpeakerID,
		Provider:    t.Provider,
		T0:          t.Time.T0,
		T1:          t.Time.T1,
		Text:        t.Text,
		Confidence:  t.Confidence,
		WordTimings: datatypes.JSON(wt),
	}, nil
}

func SpeechTurnFromRow(r SpeechTurnRow) (*content.SpeechTurn, error) {
	var wt []content.WordTiming
	if len(r.WordTimings) > 0 {
		if err := json.Unmarshal(r.WordTimings, &wt); err != nil {
			return nil, err
		}
	}
	return &content.SpeechTurn{
		ID:          r.ID,
		SegmentID:   r.SegmentID,
		SpeakerID:   r.SpeakerID,
		Provider:    r.Provider,
		Time:        content.TimeRange{T0: r.T0, T1: r.T1},
		Text:        r.Text,
		Confidence:  r.Confidence,
		WordTimings: wt,
	}, nil
}

func DiagramEntityToRow(e *content.DiagramEntity) DiagramEntityRow {
	x, y, w, h := bboxToRow(e.Bbox)
	return DiagramEntityRow{
		ID:         e.ID,
		DocumentID: e.DocumentID,
		Label:      e.Label,
		EntityKind: e.EntityKind,
		BboxX:      x,
		BboxY:      y,
		BboxW:      w,
		BboxH:      h,
	}
}

func DiagramEntityFromRow(r DiagramEntityRow) *content.DiagramEntity {
	return &content.DiagramEntity{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		Label:      r.Label,
		EntityKind: r.EntityKind,
		Bbox:       bboxFromRow(r.BboxX, r.BboxY, r.BboxW, r.BboxH),
	}
}

func DiagramEdgeToRow(e *content.DiagramEdge) DiagramEdgeRow {
	return DiagramEdgeRow{
		ID:          e.ID,
		DocumentID:  e.DocumentID,
		SrcEntityID: e.SrcEntityID,
		DstEntityID: e.DstEntityID,
		Label:       e.Label,
		Directed:    e.Directed,
	}
}

func DiagramEdgeFromRow(r DiagramEdgeRow) *content.DiagramEdge {
	return &content.DiagramEdge{
		ID:          r.ID,
		DocumentID:  r.DocumentID,
		SrcEntityID: r.SrcEntityID,
		DstEntityID: r.DstEntityID,
		Label:       r.Label,
		Directed:    r.Directed,
	}
}

func BlockVectorToRow(v *content.BlockVector) (BlockVectorRow, error) {
	vec, err := json.Marshal(v.Vector)
	if err != nil {
		return BlockVectorRow{}, err
	}
	return BlockVectorRow{
		BlockID:   v.BlockID,
		ModelID:   v.ModelID,
		Vector:    datatypes.JSON(vec),
		IndexedAt: v.IndexedAt,
	}, nil
}

func BlockVectorFromRow(r BlockVectorRow) (*content.BlockVector, error) {
	var vec []float32
	if err := json.Unmarshal(r.Vector, &vec); err != nil {
		return nil, err
	}
	return &content.BlockVector{
		BlockID:   r.BlockID,
		ModelID:   r.ModelID,
		Vector:    vec,
		IndexedAt: r.IndexedAt,
	}, nil
}

func ProvenanceToRow(p content.Provenance) (ProvenanceRow, error) {
	chain, err := json.Marshal(p.EnricherChain)
	if err != nil {
		return ProvenanceRow{}, err
	}
	return ProvenanceRow{
		BlockID:       p.BlockID,
		IngestorID:    p.IngestorID,
		EnricherChain: datatypes.JSON(chain),
		SourceURI:     p.SourceURI,
		SourceSHA256:  p.SourceSHA256,
	}, nil
}

func ProvenanceFromRow(r ProvenanceRow) (content.Provenance, error) {
	var chain []content.EnricherStep
	if len(r.EnricherChain) > 0 {
		if err := json.Unmarshal(r.EnricherChain, &chain); err != nil {
			return content.Provenance{}, err
		}
	}
	return content.Provenance{
		BlockID:       r.BlockID,
		IngestorID:    r.IngestorID,
		EnricherChain: chain,
		SourceURI:     r.SourceURI,
		SourceSHA256:  r.SourceSHA256,
	}, nil
}

func SearchLogToRow(l content.SearchLog) (SearchLogRow, error) {
	perModality, err := json.Marshal(l.PerModalityResults)
	if err != nil {
		return SearchLogRow{}, err
	}
	fused, err := json.Marshal(l.FusedRanking)
	if err != nil {
		return SearchLogRow{}, err
	}
	citations, err := json.Marshal(l.CitationsReturned)
	if err != nil {
		return SearchLogRow{}, err
	}
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return SearchLogRow{
		ID:                 id,
		Ts:                 l.Ts,
		QueryType:          l.QueryType,
		ScopeFilter:        l.ScopeFilter,
		PerModalityResults: datatypes.JSON(perModality),
		FusedRanking:       datatypes.JSON(fused),
		CitationsReturned:  datatypes.JSON(citations),
		ConsumerID:         l.ConsumerID,
	}, nil
}
