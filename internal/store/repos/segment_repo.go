package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

type SegmentRepo interface {
	Create(dbc dbctx.Context, segs []*content.Segment) ([]*content.Segment, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Segment, error)
	GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*content.Segment, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*content.Segment, error)
}

type segmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentRepo(db *gorm.DB, baseLog *logger.Logger) SegmentRepo {
	return &segmentRepo{db: db, log: baseLog.With("repo", "SegmentRepo")}
}

func (r *segmentRepo) Create(dbc dbctx.Context, segs []*content.Segment) ([]*content.Segment, error) {
	if len(segs) == 0 {
		return nil, nil
	}
	tx := r.tx(dbc)
	rows := make([]postgres.SegmentRow, len(segs))
	for i, s := range segs {
		rows[i] = postgres.SegmentToRow(s)
	}
	if err := tx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.Segment, len(rows))
	for i, row := range rows {
		out[i] = postgres.SegmentFromRow(row)
	}
	return out, nil
}

func (r *segmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Segment, error) {
	tx := r.tx(dbc)
	var row postgres.SegmentRow
	if err := tx.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return postgres.SegmentFromRow(row), nil
}

func (r *segmentRepo) GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*content.Segment, error) {
	tx := r.tx(dbc)
	var rows []postgres.SegmentRow
	if err := tx.WithContext(dbc.Ctx).Where("document_id = ?", documentID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.Segment, len(rows))
	for i, row := range rows {
		out[i] = postgres.SegmentFromRow(row)
	}
	return out, nil
}

func (r *segmentRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*content.Segment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx := r.tx(dbc)
	var rows []postgres.SegmentRow
	if err := tx.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.Segment, len(rows))
	for i, row := range rows {
		out[i] = postgres.SegmentFromRow(row)
	}
	return out, nil
}

func (r *segmentRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
