// Package history keeps a log of applied mode transitions in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suntheme/internal/mode"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Source identifies who applied a mode
type Source string

const (
	SourceScheduler Source = "scheduler"
	SourceSet       Source = "set"
	SourceToggle    Source = "toggle"
	SourceExternal  Source = "external"
)

// Entry is one applied transition
type Entry struct {
	ID        string    `json:"id"`
	Mode      mode.Mode `json:"mode"`
	Source    Source    `json:"source"`
	AppliedAt time.Time `json:"applied_at"`
}

// NewEntry builds an entry with a fresh ID
func NewEntry(m mode.Mode, source Source, at time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Mode:      m,
		Source:    source,
		AppliedAt: at.UTC(),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	source      TEXT NOT NULL,
	applied_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS transitions_applied_at ON transitions(applied_at);
`

const (
	defaultLimit = 20

	// MaxLimit is the most entries Recent returns in one call
	MaxLimit = 1000
)

// Fixed width so that text ordering in SQLite matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists transitions in a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The daemon and one-shot commands may open the file concurrently.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts an entry
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (id, mode, source, applied_at) VALUES (?, ?, ?, ?)`,
		e.ID, string(e.Mode), string(e.Source), e.AppliedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// selects a default of 20; limits above MaxLimit are clamped to it.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, MaxLimit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, source, applied_at FROM transitions
		 ORDER BY applied_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, min(limit, defaultLimit))
	for rows.Next() {
		var (
			e         Entry
			modeStr   string
			sourceStr string
			appliedAt string
		)
		if err := rows.Scan(&e.ID, &modeStr, &sourceStr, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if e.Mode, err = mode.Parse(modeStr); err != nil {
			return nil, fmt.Errorf("transition %s: %w", e.ID, err)
		}
		if e.AppliedAt, err = time.Parse(timeLayout, appliedAt); err != nil {
			return nil, fmt.Errorf("transition %s: parse applied_at: %w", e.ID, err)
		}
		e.Source = Source(sourceStr)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return entries, nil
}
