package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

// BlockVectorRepo is the relational audit counterpart of
// internal/store/vectorstore.Store: the durable vector payload used to
// rebuild the in-process HNSW graph lives in the vector store, this repo
// records which (block_id, model_id) pairs exist and when they were indexed.
type BlockVectorRepo interface {
	Upsert(dbc dbctx.Context, v *content.BlockVector) error
	GetByBlockID(dbc dbctx.Context, blockID uuid.UUID) ([]*content.BlockVector, error)
	DeleteByBlockID(dbc dbctx.Context, blockID uuid.UUID) error
}

type blockVectorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlockVectorRepo(db *gorm.DB, baseLog *logger.Logger) BlockVectorRepo {
	return &blockVectorRepo{db: db, log: baseLog.With("repo", "BlockVectorRepo")}
}

func (r *blockVectorRepo) Upsert(dbc dbctx.Context, v *content.BlockVector) error {
	tx := r.tx(dbc)
	row, err := postgres.BlockVectorToRow(v)
	if err != nil {
		return err
	}
	return tx.WithContext(dbc.Ctx).
		Clauses(onConflictUpdateVector()).
		Create(&row).Error
}

func (r *blockVectorRepo) GetByBlockID(dbc dbctx.Context, blockID uuid.UUID) ([]*content.BlockVector, error) {
	tx := r.tx(dbc)
	var rows []postgres.BlockVectorRow
	if err := tx.WithContext(dbc.Ctx).Where("block_id = ?", blockID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.BlockVector, len(rows))
	for i, row := range rows {
		v, err := postgres.BlockVectorFromRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *blockVectorRepo) DeleteByBlockID(dbc dbctx.Context, blockID uuid.UUID) error {
	tx := r.tx(dbc)
	return tx.WithContext(dbc.Ctx).Where("block_id = ?", blockID).Delete(&postgres.BlockVectorRow{}).Error
}

func (r *blockVectorRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
