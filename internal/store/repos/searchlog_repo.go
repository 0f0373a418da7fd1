package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

type SearchLogRepo interface {
	Create(dbc dbctx.Context, log content.SearchLog) error
}

type searchLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchLogRepo(db *gorm.DB, baseLog *logger.Logger) SearchLogRepo {
	return &searchLogRepo{db: db, log: baseLog.With("repo", "SearchLogRepo")}
}

func (r *searchLogRepo) Create(dbc dbctx.Context, l content.SearchLog) error {
	tx := r.tx(dbc)
	row, err := postgres.SearchLogToRow(l)
	if err != nil {
		return err
	}
	return tx.WithContext(dbc.Ctx).Create(&row).Error
}

func (r *searchLogRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

// SearchLogWriter adapts SearchLogRepo to retrieval.LogWriter, the narrow
// interface the retriever (C10) depends on without importing this package.
type SearchLogWriter struct {
	repo SearchLogRepo
}

func NewSearchLogWriter(repo SearchLogRepo) *SearchLogWriter {
	return &SearchLogWriter{repo: repo}
}

func (w *SearchLogWriter) WriteSearchLog(ctx context.Context, l content.SearchLog) error {
	return w.repo.Create(dbctx.Context{Ctx: ctx}, l)
}
