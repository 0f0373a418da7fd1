package repos

import (
	"gorm.io/gorm/clause"
)

// onConflictDoNothing builds an ON CONFLICT (cols...) DO NOTHING clause,
// used where a row's natural key (segment_id+content_hash on blocks) makes
// re-ingestion idempotent rather than an error.
func onConflictDoNothing(cols ...string) clause.OnConflict {
	columns := make([]clause.Column, len(cols))
	for i, c := range cols {
		columns[i] = clause.Column{Name: c}
	}
	return clause.OnConflict{Columns: columns, DoNothing: true}
}

// onConflictUpdateVector re-indexes a block under the same model by
// overwriting its vector and indexed_at, used when an enricher or embedder
// re-runs over content it already indexed.
func onConflictUpdateVector() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "block_id"}, {Name: "model_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vector", "indexed_at"}),
	}
}

// onConflictUpdateProvenance replaces a block's provenance row wholesale,
// since the in-memory Provenance.Append always hands back the full chain.
func onConflictUpdateProvenance() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "block_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ingestor_id", "enricher_chain", "source_uri", "source_sha256"}),
	}
}
