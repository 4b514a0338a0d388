package facts

import (
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the SQLite schema for the distance-fact store.
func InitSchemaSQLite(db *sql.DB) error {
	createFactsQuery := `
	CREATE TABLE IF NOT EXISTS distance_facts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin_address TEXT NOT NULL DEFAULT '',
		origin_lat REAL NOT NULL,
		origin_lng REAL NOT NULL,
		destination_address TEXT NOT NULL DEFAULT '',
		destination_lat REAL NOT NULL,
		destination_lng REAL NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		polyline TEXT,
		created_at INTEGER NOT NULL,
		last_used_at INTEGER NOT NULL
	);
	`

	createBoxIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_distance_facts_box
	ON distance_facts(origin_lat, origin_lng, destination_lat, destination_lng);
	`

	createLastUsedIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_distance_facts_last_used
	ON distance_facts(last_used_at);
	`

	return execSchema(db, []string{
		createFactsQuery,
		createBoxIndexQuery,
		createLastUsedIndexQuery,
	})
}

// Initialize the Postgres schema for the distance-fact store.
func InitSchemaPostgres(db *sql.DB) error {
	createFactsQuery := `
	CREATE TABLE IF NOT EXISTS distance_facts (
		id BIGSERIAL PRIMARY KEY,
		origin_address TEXT NOT NULL DEFAULT '',
		origin_lat DOUBLE PRECISION NOT NULL,
		origin_lng DOUBLE PRECISION NOT NULL,
		destination_address TEXT NOT NULL DEFAULT '',
		destination_lat DOUBLE PRECISION NOT NULL,
		destination_lng DOUBLE PRECISION NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		polyline TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		last_used_at TIMESTAMPTZ NOT NULL
	);
	`

	createBoxIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_distance_facts_box
	ON distance_facts(origin_lat, origin_lng, destination_lat, destination_lng);
	`

	createLastUsedIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_distance_facts_last_used
	ON distance_facts(last_used_at);
	`

	return execSchema(db, []string{
		createFactsQuery,
		createBoxIndexQuery,
		createLastUsedIndexQuery,
	})
}

func execSchema(db *sql.DB, statements []string) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
