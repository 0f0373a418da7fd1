package postgres

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrateAll creates or updates every C12 table, then layers on the raw
// SQL constraints AutoMigrate cannot express, following the teacher's
// migrate.go two-step shape (AutoMigrate the struct-tag-expressible shape,
// then a following EnsureXIndexes pass of db.Exec calls).
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&DocumentRow{},
		&SegmentRow{},
		&BlockRow{},
		&SpeechTurnRow{},
		&DiagramEntityRow{},
		&DiagramEdgeRow{},
		&BlockVectorRow{},
		&ProvenanceRow{},
		&SearchLogRow{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return EnsureConstraints(db)
}

// EnsureConstraints adds what AutoMigrate's struct tags can't express: a
// trigger enforcing that a block's time interval, when present, lies within
// its parent segment's time interval — the same invariant NewBlock already
// checks in-process, re-asserted at the database boundary for writers that
// bypass the domain constructor (bulk loads, repairs). The unique
// (segment_id, content_hash) and (block_id, model_id) constraints are
// ordinary composite uniqueIndex struct tags, already applied by AutoMigrate
// above.
func EnsureConstraints(db *gorm.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_segments_document_id ON segments (document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_segment_id ON blocks (segment_id)`,
		`CREATE OR REPLACE FUNCTION check_block_time_within_segment() RETURNS trigger AS $$
DECLARE
	seg_t0 bigint;
	seg_t1 bigint;
BEGIN
	IF NEW.t0 IS NULL OR NEW.t1 IS NULL THEN
		RETURN NEW;
	END IF;
	SELECT t0, t1 INTO seg_t0, seg_t1 FROM segments WHERE id = NEW.segment_id;
	IF seg_t0 IS NULL OR seg_t1 IS NULL THEN
		RETURN NEW;
	END IF;
	IF NEW.t0 < seg_t0 OR NEW.t1 > seg_t1 THEN
		RAISE EXCEPTION 'block % time interval [%, %] is not contained in segment % interval [%, %]',
			NEW.id, NEW.t0, NEW.t1, NEW.segment_id, seg_t0, seg_t1;
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS trg_block_time_within_segment ON blocks`,
		`CREATE TRIGGER trg_block_time_within_segment
			BEFORE INSERT OR UPDATE ON blocks
			FOR EACH ROW EXECUTE FUNCTION check_block_time_within_segment()`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure constraints: %w", err)
		}
	}
	return nil
}

// (s *Service) AutoMigrateAll mirrors the teacher's PostgresService method
// of the same name, so the composition root has a single call to make.
func (s *Service) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}
