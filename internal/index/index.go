// Package index provides a SQLite-backed lookup index over the event store:
// alias/uid resolution, duplicate detection, and change watching.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
	uid      TEXT PRIMARY KEY,
	alias    TEXT NOT NULL,
	calendar TEXT NOT NULL DEFAULT '',
	start    TEXT NOT NULL DEFAULT '',
	updated  TEXT NOT NULL DEFAULT '',
	archived INTEGER NOT NULL DEFAULT 0
);

-- Aliases are only unique within the active partition.
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_alias_active
	ON events(alias) WHERE archived = 0;
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite index and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
