// Package repos implements spec component C12's repositories on top of
// internal/store/postgres's row types, following the teacher's
// dbctx.Context-threaded repo pattern exactly (internal/data/repos/materials
// /materialfile.go): every method accepts a dbctx.Context so a caller
// coordinating a multi-table write opens one transaction and passes it down,
// and falls back to the repo's own connection when dbc.Tx is nil.
package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, doc *content.Document) (*content.Document, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Document, error)
	GetBySHA256(dbc dbctx.Context, sha256 string) (*content.Document, error)
	ListByProjectScope(dbc dbctx.Context, projectScope *string) ([]*content.Document, error)
	// Delete cascades through segments, blocks, speech_turns, diagram
	// entities/edges, block_vectors and provenance by deleting each child
	// table's rows explicitly before the document row.
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, doc *content.Document) (*content.Document, error) {
	tx := r.tx(dbc)
	row := postgres.DocumentToRow(doc)
	if err := tx.WithContext(dbc.Ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return postgres.DocumentFromRow(row), nil
}

func (r *documentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*content.Document, error) {
	tx := r.tx(dbc)
	var row postgres.DocumentRow
	if err := tx.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return postgres.DocumentFromRow(row), nil
}

func (r *documentRepo) GetBySHA256(dbc dbctx.Context, sha256 string) (*content.Document, error) {
	tx := r.tx(dbc)
	var row postgres.DocumentRow
	if err := tx.WithContext(dbc.Ctx).Where("sha256 = ?", sha256).First(&row).Error; err != nil {
		return nil, err
	}
	return postgres.DocumentFromRow(row), nil
}

func (r *documentRepo) ListByProjectScope(dbc dbctx.Context, projectScope *string) ([]*content.Document, error) {
	tx := r.tx(dbc)
	q := tx.WithContext(dbc.Ctx)
	if projectScope == nil {
		q = q.Where("project_scope IS NULL")
	} else {
		q = q.Where("project_scope = ?", *projectScope)
	}
	var rows []postgres.DocumentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.Document, len(rows))
	for i, row := range rows {
		out[i] = postgres.DocumentFromRow(row)
	}
	return out, nil
}

func (r *documentRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	tx := r.tx(dbc)
	// The schema is migrated with foreign-key creation disabled, so children
	// are deleted explicitly, innermost first, before the document row.
	for _, stmt := range []string{
		`DELETE FROM block_vectors WHERE block_id IN (SELECT b.id FROM blocks b JOIN segments s ON s.id = b.segment_id WHERE s.document_id = ?)`,
		`DELETE FROM provenance WHERE block_id IN (SELECT b.id FROM blocks b JOIN segments s ON s.id = b.segment_id WHERE s.document_id = ?)`,
		`DELETE FROM blocks WHERE segment_id IN (SELECT id FROM segments WHERE document_id = ?)`,
		`DELETE FROM speech_turns WHERE segment_id IN (SELECT id FROM segments WHERE document_id = ?)`,
		`DELETE FROM segments WHERE document_id = ?`,
		`DELETE FROM diagram_edges WHERE document_id = ?`,
		`DELETE FROM diagram_entities WHERE document_id = ?`,
	} {
		if err := tx.WithContext(dbc.Ctx).Exec(stmt, id).Error; err != nil {
			return err
		}
	}
	return tx.WithContext(dbc.Ctx).Unscoped().Where("id = ?", id).Delete(&postgres.DocumentRow{}).Error
}

func (r *documentRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
