package db

import (
	"fmt"

	"gorm.io/gorm"
)

// This engine owns no tables; the stop-record fact table belongs to the
// import job. The only local DDL is the set of indexes the aggregate
// queries lean on, each guarded on the table existing.
var migrationStatements = []string{
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'stop_records') THEN
			CREATE INDEX IF NOT EXISTS idx_stop_records_lat_lng ON stop_records (latitude, longitude);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'stop_records') THEN
			CREATE INDEX IF NOT EXISTS idx_stop_records_occurred_at ON stop_records (occurred_at);
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'stop_records') THEN
			CREATE INDEX IF NOT EXISTS idx_stop_records_speed_over ON stop_records (speed_over) WHERE speed_over IS NOT NULL;
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'stop_records') THEN
			CREATE INDEX IF NOT EXISTS idx_stop_records_grid ON stop_records (ROUND(latitude::numeric, 2), ROUND(longitude::numeric, 2));
		END IF;
	END
	$$;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
