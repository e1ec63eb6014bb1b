// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses recorded in harvest_runs.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

// Run is one recorded harvest run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Admitted   int
	Status     string
}

// StartRun records the start of a harvest run.
func (s *Store) StartRun(ctx context.Context, id string, at time.Time) error {
	return withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO harvest_runs (id, started_at, status) VALUES (?, ?, ?)`,
			id, formatTime(at), RunRunning,
		)
		if err != nil {
			return fmt.Errorf("recording run %s: %w", id, err)
		}
		return nil
	})
}

// FinishRun records the outcome of a harvest run.
func (s *Store) FinishRun(ctx context.Context, id string, at time.Time, admitted int, status string) error {
	return withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE harvest_runs SET finished_at = ?, admitted = ?, status = ? WHERE id = ?`,
			formatTime(at), admitted, status, id,
		)
		if err != nil {
			return fmt.Errorf("finishing run %s: %w", id, err)
		}
		return nil
	})
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, admitted, status FROM harvest_runs
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Admitted, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t := parseTime(sql.NullString{String: started, Valid: true}); t != nil {
			r.StartedAt = *t
		}
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
