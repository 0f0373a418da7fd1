package postgres

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rivergate/mediareef/internal/platform/logger"
)

// Service wraps a *gorm.DB the way the teacher's PostgresService wraps its
// own connection: one place that owns Open, AutoMigrateAll, and a plain
// accessor for repos to build queries against.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects using dsn (spec §6's storage.dsn), enabling the uuid-ossp
// extension the row types' default:uuid_generate_v4() tags rely on, exactly
// as the teacher's NewPostgresService does.
func Open(dsn string, log *logger.Logger) (*Service, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: dsn must not be empty")
	}
	gormLog := gormLogger.New(gormWriter{log}, gormLogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormLogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return nil, fmt.Errorf("postgres: enable uuid-ossp: %w", err)
	}
	return &Service{db: db, log: log}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

// gormWriter adapts the structured logger to gorm's io.Writer-shaped
// logger.Writer interface (a single Printf-style method).
type gormWriter struct{ log *logger.Logger }

func (w gormWriter) Printf(format string, args ...interface{}) {
	if w.log == nil {
		return
	}
	w.log.Debug(fmt.Sprintf(format, args...))
}
