// Package postgres is the relational persistence layer for spec component
// C12: one GORM row type per domain entity, migrated via AutoMigrateAll,
// with the constraint GORM struct tags cannot express (the block/segment
// time-containment trigger) added by raw SQL
// in migrate.go — grounded on the teacher's internal/domain/materials row
// types (gorm struct-tag idiom: uuid primary keys defaulting to
// uuid_generate_v4(), FK constraints with OnDelete:CASCADE, jsonb columns
// via gorm.io/datatypes, an explicit TableName() per row type) and its
// internal/data/db/migrate.go (AutoMigrate the base tables, then a
// following EnsureXIndexes pass of db.Exec raw SQL for anything struct tags
// can't reach).
package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentRow struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	URI          string    `gorm:"not null"`
	SHA256       string    `gorm:"column:sha256;not null;uniqueIndex"`
	Kind         string    `gorm:"not null"`
	Mime         string    `gorm:"not null"`
	ProjectScope *string   `gorm:"index"`
	CreatedAt    time.Time `gorm:"not null;default:now()"`
}

func (DocumentRow) TableName() string { return "documents" }

type SegmentRow struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	DocumentID   uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID"`
	SegmentType  string    `gorm:"not null"`
	T0           *int64
	T1           *int64
	BboxX        *float64
	BboxY        *float64
	BboxW        *float64
	BboxH        *float64
	QualityScore float64 `gorm:"not null;default:0"`
	ProjectScope *string `gorm:"index"`
}

func (SegmentRow) TableName() string { return "segments" }

type BlockRow struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	SegmentID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_blocks_segment_content_hash;constraint:OnDelete:CASCADE;foreignKey:SegmentID;references:ID"`
	Role          string    `gorm:"not null"`
	Text          string    `gorm:"type:text"`
	BboxX         *float64
	BboxY         *float64
	BboxW         *float64
	BboxH         *float64
	T0            *int64
	T1            *int64
	OCRConfidence *float64
	ContentHash   string `gorm:"column:content_hash;not null;uniqueIndex:idx_blocks_segment_content_hash"`
}

func (BlockRow) TableName() string { return "blocks" }

type SpeechTurnRow struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	SegmentID   uuid.UUID      `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE;foreignKey:SegmentID;references:ID"`
	SpeakerID   string         `gorm:"not null"`
	Provider    string         `gorm:"not null"`
	T0          int64          `gorm:"not null"`
	T1          int64          `gorm:"not null"`
	Text        string         `gorm:"type:text"`
	Confidence  float64        `gorm:"not null;default:0"`
	WordTimings datatypes.JSON `gorm:"type:jsonb"`
}

func (SpeechTurnRow) TableName() string { return "speech_turns" }

type DiagramEntityRow struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID"`
	Label      string    `gorm:"not null"`
	EntityKind string    `gorm:"not null"`
	BboxX      *float64
	BboxY      *float64
	BboxW      *float64
	BboxH      *float64
}

func (DiagramEntityRow) TableName() string { return "diagram_entities" }

type DiagramEdgeRow struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID"`
	SrcEntityID uuid.UUID `gorm:"type:uuid;not null;index"`
	DstEntityID uuid.UUID `gorm:"type:uuid;not null;index"`
	Label       string    `gorm:"not null"`
	Directed    bool      `gorm:"not null;default:true"`
}

func (DiagramEdgeRow) TableName() string { return "diagram_edges" }

// BlockVectorRow is the relational audit record of which model has indexed
// which block; the vector payload itself is durably mirrored by
// internal/store/vectorstore (Qdrant), the actual rebuild source for the
// in-process HNSW graphs. Keeping a jsonb copy here too lets an operator
// inspect or re-derive vectors from a plain SQL dump without a Qdrant
// dependency, at the cost of double storage — acceptable at this system's
// scale (spec §1's stated ceiling is a single machine, hours of footage).
type BlockVectorRow struct {
	BlockID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_block_vectors_block_model"`
	ModelID   string         `gorm:"not null;uniqueIndex:idx_block_vectors_block_model"`
	Vector    datatypes.JSON `gorm:"type:jsonb;not null"`
	IndexedAt time.Time      `gorm:"not null;default:now()"`
}

func (BlockVectorRow) TableName() string { return "block_vectors" }

type ProvenanceRow struct {
	BlockID       uuid.UUID      `gorm:"type:uuid;primaryKey"`
	IngestorID    string         `gorm:"not null"`
	EnricherChain datatypes.JSON `gorm:"type:jsonb"`
	SourceURI     string         `gorm:"not null"`
	SourceSHA256  string         `gorm:"column:source_sha256;not null"`
}

func (ProvenanceRow) TableName() string { return "provenance" }

type SearchLogRow struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Ts                 time.Time      `gorm:"not null;default:now();index"`
	QueryType          string         `gorm:"not null"`
	ScopeFilter        *string
	PerModalityResults datatypes.JSON `gorm:"type:jsonb"`
	FusedRanking       datatypes.JSON `gorm:"type:jsonb"`
	CitationsReturned  datatypes.JSON `gorm:"type:jsonb"`
	ConsumerID         string         `gorm:"not null"`
}

func (SearchLogRow) TableName() string { return "search_logs" }
