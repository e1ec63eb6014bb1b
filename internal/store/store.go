// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists harvested researchers, their reference entities,
// and per-topic harvest checkpoints in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mattn/go-sqlite3"
)

const timeLayout = time.RFC3339Nano

// Store is a SQLite-backed document store for the harvester.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS countries (
			code TEXT PRIMARY KEY,
			display_name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fields (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS institutions (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			country_id TEXT REFERENCES countries(code)
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL UNIQUE,
			external_id TEXT NOT NULL DEFAULT '',
			field_id TEXT REFERENCES fields(id),
			cursor TEXT NOT NULL DEFAULT '*',
			last_synced_at TEXT,
			admitted_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_topics_external_id ON topics(external_id)`,
		`CREATE TABLE IF NOT EXISTS researchers (
			id TEXT PRIMARY KEY,
			orcid TEXT NOT NULL UNIQUE,
			slug TEXT,
			name TEXT NOT NULL,
			external_id TEXT,
			affiliations TEXT,
			last_known_affiliations TEXT,
			research_metrics TEXT,
			topics TEXT,
			citation_trends TEXT,
			search_tags TEXT,
			source_updated_at TEXT,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_researchers_slug ON researchers(slug)`,
		`CREATE TABLE IF NOT EXISTS researcher_tags (
			researcher_id TEXT NOT NULL REFERENCES researchers(id),
			tag TEXT NOT NULL,
			PRIMARY KEY (researcher_id, tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_researcher_tags_tag ON researcher_tags(tag)`,
		`CREATE TABLE IF NOT EXISTS harvest_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			admitted INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// writeRetries bounds how often a write is retried while the database is
// locked by another connection.
const writeRetries = 5

// withWriteRetry runs fn, retrying while SQLite reports the database as
// busy or locked.
func withWriteRetry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(writeRetries),
		retry.Delay(50*time.Millisecond),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
	)
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
