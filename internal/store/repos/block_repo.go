package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

type BlockRepo interface {
	// Create upserts on (segment_id, content_hash) so re-ingesting the same
	// content is idempotent, matching the content_hash's documented role as
	// the block's idempotency key.
	Create(dbc dbctx.Context, blocks []*content.Block) ([]*content.Block, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Block, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*content.Block, error)
	GetBySegmentID(dbc dbctx.Context, segmentID uuid.UUID) ([]*content.Block, error)
}

type blockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlockRepo(db *gorm.DB, baseLog *logger.Logger) BlockRepo {
	return &blockRepo{db: db, log: baseLog.With("repo", "BlockRepo")}
}

func (r *blockRepo) Create(dbc dbctx.Context, blocks []*content.Block) ([]*content.Block, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	tx := r.tx(dbc)
	rows := make([]postgres.BlockRow, len(blocks))
	for i, b := range blocks {
		rows[i] = postgres.BlockToRow(b)
	}
	if err := tx.WithContext(dbc.Ctx).
		Clauses(onConflictDoNothing("segment_id", "content_hash")).
		Create(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.Block, len(rows))
	for i, row := range rows {
		out[i] = postgres.BlockFromRow(row)
	}
	return out, nil
}

func (r *blockRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Block, error) {
	tx := r.tx(dbc)
	var row postgres.BlockRow
	if err := tx.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return postgres.BlockFromRow(row), nil
}

func (r *blockRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*content.Block, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx := r.tx(dbc)
	var rows []postgres.BlockRow
	if err := tx.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.Block, len(rows))
	for i, row := range rows {
		out[i] = postgres.BlockFromRow(row)
	}
	return out, nil
}

func (r *blockRepo) GetBySegmentID(dbc dbctx.Context, segmentID uuid.UUID) ([]*content.Block, error) {
	tx := r.tx(dbc)
	var rows []postgres.BlockRow
	if err := tx.WithContext(dbc.Ctx).Where("segment_id = ?", segmentID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.Block, len(rows))
	for i, row := range rows {
		out[i] = postgres.BlockFromRow(row)
	}
	return out, nil
}

func (r *blockRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
