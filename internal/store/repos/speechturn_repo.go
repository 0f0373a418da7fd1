package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/pkg/dbctx"
	"github.com/rivergate/mediareef/internal/platform/logger"
	"github.com/rivergate/mediareef/internal/store/postgres"
)

type SpeechTurnRepo interface {
	Create(dbc dbctx.Context, turns []*content.SpeechTurn) ([]*content.SpeechTurn, error)
	GetBySegmentID(dbc dbctx.Context, segmentID uuid.UUID) ([]*content.SpeechTurn, error)
}

type speechTurnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSpeechTurnRepo(db *gorm.DB, baseLog *logger.Logger) SpeechTurnRepo {
	return &speechTurnRepo{db: db, log: baseLog.With("repo", "SpeechTurnRepo")}
}

func (r *speechTurnRepo) Create(dbc dbctx.Context, turns []*content.SpeechTurn) ([]*content.SpeechTurn, error) {
	if len(turns) == 0 {
		return nil, nil
	}
	tx := r.tx(dbc)
	rows := make([]postgres.SpeechTurnRow, len(turns))
	for i, t := range turns {
		row, err := postgres.SpeechTurnToRow(t)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	if err := tx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.SpeechTurn, len(rows))
	for i, row := range rows {
		st, err := postgres.SpeechTurnFromRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = st
	}
	return out, nil
}

func (r *speechTurnRepo) GetBySegmentID(dbc dbctx.Context, segmentID uuid.UUID) ([]*content.SpeechTurn, error) {
	tx := r.tx(dbc)
	var rows []postgres.SpeechTurnRow
	if err := tx.WithContext(dbc.Ctx).Where("segment_id = ?", segmentID).Order("t0 asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*content.SpeechTurn, len(rows))
	for i, row := range rows {
		st, err := postgres.SpeechTurnFromRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = st
	}
	return out, nil
}

func (r *speechTurnRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}
