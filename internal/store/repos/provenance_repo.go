package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

type ProvenanceRepo interface {
	// Upsert replaces the whole row, since content.Provenance.Append
	// already produces the full, append-only chain in memory; the write
	// here is one row-per-block, not a per-step append.
	Upsert(dbc dbctx.Context, p content.Provenance) error
	GetByBlockID(dbc dbctx.Context, blockID uuid.UUID) (content.Provenance, error)
}

type provenanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProvenanceRepo(db *gorm.DB, baseLog *logger.Logger) ProvenanceRepo {
	return &provenanceRepo{db: db, log: baseLog.With("repo", "ProvenanceRepo")}
}

func (r *provenanceRepo) Upsert(dbc dbctx.Context, p content.Provenance) error {
	tx := r.tx(dbc)
	row, err := postgres.ProvenanceToRow(p)
	if err != nil {
		return err
	}
	return tx.WithContext(dbc.Ctx).
		Clauses(onConflictUpdateProvenance()).
		Create(&row).Error
}

func (r *provenanceRepo) GetByBlockID(dbc dbctx.Context, blockID uuid.UUID) (content.Provenance, error) {
	tx := r.tx(dbc)
	var row postgres.ProvenanceRow
	if err := tx.WithContext(dbc.Ctx).Where("block_id = ?", blockID).First(&row).Error; err != nil {
		return content.Provenance{}, err
	}
	return postgres.ProvenanceFromRow(row)
}

func (r *provenanceRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
