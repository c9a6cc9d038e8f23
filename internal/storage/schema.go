package storage

import (
	"database/sql"
	"fmt"
)

// migration is a single versioned schema change.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations returns all schema migrations in order.
func migrations() []migration {
	return []migration{
		{
			Version: 1,
			Name:    "create_records_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS records (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_records_updated_at ON records (updated_at);

				CREATE TABLE IF NOT EXISTS schema_migrations (
					version INTEGER PRIMARY KEY,
					name TEXT NOT NULL,
					applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	}
}

// applyMigrations runs all pending migrations against the database.
func applyMigrations(db *sql.DB) error {
	// The tracking table itself is created by migration 1, so probe for it
	// first and treat its absence as version 0.
	version := 0
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&version); err != nil {
		version = 0
	}

	for _, m := range migrations() {
		if m.Version <= version {
			continue
		}
		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := db.Exec(
			`INSERT OR REPLACE INTO schema_migrations (version, name) VALUES (?, ?)`,
			m.Version, m.Name); err != nil {
			return fmt.Errorf("recording migration %d failed: %w", m.Version, err)
		}
	}
	return nil
}
