package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/dagaz/internal/apperr"
)

// EventRow is the indexed subset of an event record.
type EventRow struct {
	UID      string
	Alias    string
	Calendar string
	Start    time.Time
	Updated  time.Time
	Archived bool
}

// UpsertEvent inserts or refreshes one index row.
func (db *DB) UpsertEvent(row EventRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO events (uid, alias, calendar, start, updated, archived)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			alias=excluded.alias,
			calendar=excluded.calendar,
			start=excluded.start,
			updated=excluded.updated,
			archived=excluded.archived`,
		row.UID, row.Alias, row.Calendar,
		row.Start.Format(time.RFC3339), row.Updated.Format(time.RFC3339),
		boolInt(row.Archived))
	if err != nil {
		return fmt.Errorf("index: upsert %s: %w", row.UID, err)
	}
	return nil
}

// DeleteEvent removes one row by uid.
func (db *DB) DeleteEvent(uid string) error {
	if _, err := db.conn.Exec(`DELETE FROM events WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("index: delete %s: %w", uid, err)
	}
	return nil
}

// UIDByAlias resolves an alias within the active partition.
func (db *DB) UIDByAlias(alias string) (string, error) {
	var uid string
	err := db.conn.QueryRow(
		`SELECT uid FROM events WHERE alias = ? AND archived = 0`, alias,
	).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index: alias %q: %w", alias, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("index: alias lookup: %w", err)
	}
	return uid, nil
}

// ActiveAliases returns the set of aliases in use by the active partition,
// used for collision checks when generating new aliases.
func (db *DB) ActiveAliases() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT alias FROM events WHERE archived = 0`)
	if err != nil {
		return nil, fmt.Errorf("index: list aliases: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("index: scan alias: %w", err)
		}
		out[alias] = struct{}{}
	}
	return out, rows.Err()
}

// AllUIDs returns every indexed uid, used by Sync to drop stale rows.
func (db *DB) AllUIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT uid FROM events`)
	if err != nil {
		return nil, fmt.Errorf("index: list uids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("index: scan uid: %w", err)
		}
		out[uid] = struct{}{}
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
