package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

// DiagramEntityRepo and DiagramEdgeRepo are the relational-audit siblings of
// internal/store/graphdb: the graph store answers traversal queries
// (neighbors, paths), these repos answer "what belongs to this document,"
// the same split of duties as block_vectors vs. the vector store.
type DiagramEntityRepo interface {
	Create(dbc dbctx.Context, entities []*content.DiagramEntity) ([]*content.DiagramEntity, error)
	GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*content.DiagramEntity, error)
}

type DiagramEdgeRepo interface {
	Create(dbc dbctx.Context, edges []*content.DiagramEdge) ([]*content.DiagramEdge, error)
	GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*content.DiagramEdge, error)
}

type diagramEntityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiagramEntityRepo(db *gorm.DB, baseLog *logger.Logger) DiagramEntityRepo {
	return &diagramEntityRepo{db: db, log: baseLog.With("repo", "DiagramEntityRepo")}
}

func (r *diagramEntityRepo) Create(dbc dbctx.Context, entities []*content.DiagramEntity) ([]*content.DiagramEntity, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	tx := r.tx(dbc)
	rows := make([]postgres.DiagramEntityRow, len(entities))
	for i, e := range entities {
		rows[i] = postgres.DiagramEntityToRow(e)
	}
	if err := tx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.DiagramEntity, len(rows))
	for i, row := range rows {
		out[i] = postgres.DiagramEntityFromRow(row)
	}
	return out, nil
}

func (r *diagramEntityRepo) GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*content.DiagramEntity, error) {
	tx := r.tx(dbc)
	var rows []postgres.DiagramEntityRow
	if err := tx.WithContext(dbc.Ctx).Where("document_id = ?", documentID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.DiagramEntity, len(rows))
	for i, row := range rows {
		out[i] = postgres.DiagramEntityFromRow(row)
	}
	return out, nil
}

func (r *diagramEntityRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

type diagramEdgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiagramEdgeRepo(db *gorm.DB, baseLog *logger.Logger) DiagramEdgeRepo {
	return &diagramEdgeRepo{db: db, log: baseLog.With("repo", "DiagramEdgeRepo")}
}

func (r *diagramEdgeRepo) Create(dbc dbctx.Context, edges []*content.DiagramEdge) ([]*content.DiagramEdge, error) {
	if len(edges) == 0 {
		return nil, nil
	}
	tx := r.tx(dbc)
	rows := make([]postgres.DiagramEdgeRow, len(edges))
	for i, e := range edges {
		rows[i] = postgres.DiagramEdgeToRow(e)
	}
	if err := tx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.DiagramEdge, len(rows))
	for i, row := range rows {
		out[i] = postgres.DiagramEdgeFromRow(row)
	}
	return out, nil
}

func (r *diagramEdgeRepo) GetByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*content.DiagramEdge, error) {
	tx := r.tx(dbc)
	var rows []postgres.DiagramEdgeRow
	if err := tx.WithContext(dbc.Ctx).Where("document_id = ?", documentID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.DiagramEdge, len(rows))
	for i, row := range rows {
		out[i] = postgres.DiagramEdgeFromRow(row)
	}
	return out, nil
}

func (r *diagramEdgeRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
