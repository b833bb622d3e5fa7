// Package history records automatic and manual episode advances in a local
// sqlite database, so the UI can show where a binge left off.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS advance_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	series_id    TEXT NOT NULL,
	from_url     TEXT NOT NULL,
	to_url       TEXT NOT NULL DEFAULT '',
	position_sec REAL NOT NULL DEFAULT 0,
	duration_sec REAL NOT NULL DEFAULT 0,
	advanced_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_advance_series ON advance_history(series_id, advanced_at);
`

const entryColumns = `id, series_id, from_url, to_url, position_sec, duration_sec, advanced_at`

// Entry is one recorded advance. An empty ToURL marks an episode that ended
// without a next-episode link.
type Entry struct {
	ID          int64     `json:"id"`
	SeriesID    string    `json:"series_id"`
	FromURL     string    `json:"from_url"`
	ToURL       string    `json:"to_url"`
	PositionSec float64   `json:"position_sec"`
	DurationSec float64   `json:"duration_sec"`
	AdvancedAt  time.Time `json:"advanced_at"`
}

// Store is the sqlite-backed advance log.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the history database at dbPath.
// Pass ":memory:" for an ephemeral store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one advance and fills in the entry's ID and timestamp.
func (s *Store) Record(e *Entry) error {
	if e.AdvancedAt.IsZero() {
		e.AdvancedAt = time.Now().UTC()
	}

	result, err := s.db.Exec(
		`INSERT INTO advance_history (series_id, from_url, to_url, position_sec, duration_sec, advanced_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.SeriesID, e.FromURL, e.ToURL, e.PositionSec, e.DurationSec, e.AdvancedAt,
	)
	if err != nil {
		return fmt.Errorf("recording advance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// Recent returns the latest advances across all series, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryColumns+` FROM advance_history ORDER BY advanced_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// BySeries returns the latest advances of one series, newest first.
func (s *Store) BySeries(seriesID string, limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryColumns+` FROM advance_history WHERE series_id = ? ORDER BY advanced_at DESC, id DESC LIMIT ?`,
		seriesID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history for %q: %w", seriesID, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SeriesID, &e.FromURL, &e.ToURL, &e.PositionSec, &e.DurationSec, &e.AdvancedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
