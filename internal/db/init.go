// Package db opens the Postgres document store and creates its schema.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// users holds one profile document per device. Every field except the key
// is nullable: absent fields are defaulted by readers.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    device_id TEXT PRIMARY KEY,
    name TEXT,
    pin TEXT,
    emergency_contacts JSONB,
    notes_for_emergency TEXT,
    append_location BOOLEAN,
    theme TEXT,
    created_at TIMESTAMPTZ,
    last_accessed TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    last_edited_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS notes_device_edited_idx ON notes (device_id, last_edited_at DESC);
`

// InitPostgres opens dsn, verifies the connection and applies the schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
