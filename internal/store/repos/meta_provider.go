package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/retrieval"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

// MetaProvider adapts the relational store to retrieval.MetaProvider,
// resolving each candidate block's scope/content-hash/time/provenance in
// bulk — the fields the retriever's Match types never carry, since those
// live in durable storage per spec §4.10's own "resolve via injected
// MetaProvider" design.
type MetaProvider struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetaProvider(db *gorm.DB, baseLog *logger.Logger) *MetaProvider {
	return &MetaProvider{db: db, log: baseLog.With("component", "MetaProvider")}
}

func (p *MetaProvider) GetBlocksMeta(ctx context.Context, blockIDs []uuid.UUID) (map[uuid.UUID]retrieval.BlockMeta, error) {
	out := make(map[uuid.UUID]retrieval.BlockMeta)
	if len(blockIDs) == 0 {
		return out, nil
	}

	var blocks []postgres.BlockRow
	if err := p.db.WithContext(ctx).Where("id IN ?", blockIDs).Find(&blocks).Error; err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return out, nil
	}

	segIDs := make([]uuid.UUID, 0, len(blocks))
	seenSeg := make(map[uuid.UUID]struct{})
	for _, b := range blocks {
		if _, ok := seenSeg[b.SegmentID]; !ok {
			seenSeg[b.SegmentID] = struct{}{}
			segIDs = append(segIDs, b.SegmentID)
		}
	}

	var segments []postgres.SegmentRow
	if err := p.db.WithContext(ctx).Where("id IN ?", segIDs).Find(&segments).Error; err != nil {
		return nil, err
	}
	segByID := make(map[uuid.UUID]postgres.SegmentRow, len(segments))
	docIDs := make([]uuid.UUID, 0, len(segments))
	seenDoc := make(map[uuid.UUID]struct{})
	for _, s := range segments {
		segByID[s.ID] = s
		if _, ok := seenDoc[s.DocumentID]; !ok {
			seenDoc[s.DocumentID] = struct{}{}
			docIDs = append(docIDs, s.DocumentID)
		}
	}

	var docs []postgres.DocumentRow
	if err := p.db.WithContext(ctx).Where("id IN ?", docIDs).Find(&docs).Error; err != nil {
		return nil, err
	}
	docByID := make(map[uuid.UUID]postgres.DocumentRow, len(docs))
	for _, d := range docs {
		docByID[d.ID] = d
	}

	var provRows []postgres.ProvenanceRow
	if err := p.db.WithContext(ctx).Where("block_id IN ?", blockIDs).Find(&provRows).Error; err != nil {
		return nil, err
	}
	provByBlock := make(map[uuid.UUID]postgres.ProvenanceRow, len(provRows))
	for _, pr := range provRows {
		provByBlock[pr.BlockID] = pr
	}

	for _, b := range blocks {
		block := postgres.BlockFromRow(b)
		seg := segByID[b.SegmentID]
		doc := docByID[seg.DocumentID]

		meta := retrieval.BlockMeta{
			ContentHash:  block.ContentHash,
			SegmentID:    b.SegmentID,
			Bbox:         block.Bbox,
			Time:         block.Time,
			ProjectScope: seg.ProjectScope,
			CreatedAt:    doc.CreatedAt,
			URI:          doc.URI,
			Text:         block.Text,
			Confidence:   block.OCRConfidence,
			Modality:     roleModality(block.Role),
		}
		if pr, ok := provByBlock[b.ID]; ok {
			provenance, err := postgres.ProvenanceFromRow(pr)
			if err == nil {
				meta.ProviderChain = provenance.EnricherChain
			}
		}
		out[b.ID] = meta
	}
	return out, nil
}

// roleModality maps a block's role to the embedding modality that most
// plausibly produced it, mirroring content.Modality.RoleCompatible's own
// role/modality pairing rather than inventing a second taxonomy.
func roleModality(role content.Role) content.Modality {
	switch role {
	case content.RoleFigure, content.RoleTable, content.RoleCaption:
		return content.ModalityImage
	case content.RoleSpeech:
		return content.ModalityAudio
	default:
		return content.ModalityText
	}
}
