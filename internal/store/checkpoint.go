// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/talent-harvester/pkg/types"
)

// GetProgress returns the sync status of a topic. Unknown topics report a
// fresh status (start cursor, zero count).
func (s *Store) GetProgress(ctx context.Context, topicID string) (types.SyncStatus, error) {
	var (
		status   types.SyncStatus
		lastSync sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor, last_synced_at, admitted_count FROM topics WHERE id = ?`, topicID,
	).Scan(&status.Cursor, &lastSync, &status.AdmittedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FreshSyncStatus(), nil
	}
	if err != nil {
		return types.SyncStatus{}, fmt.Errorf("reading progress for topic %s: %w", topicID, err)
	}
	if status.Cursor == "" {
		status.Cursor = types.StartCursor
	}
	status.LastSyncedAt = parseTime(lastSync)
	return status, nil
}

// CommitProgress replaces the sync status of a topic. Repeating a commit
// with the same values is a no-op. The stored admitted count never
// decreases.
func (s *Store) CommitProgress(ctx context.Context, topicID string, status types.SyncStatus) error {
	var lastSync any
	if status.LastSyncedAt != nil {
		lastSync = formatTime(*status.LastSyncedAt)
	}
	return withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE topics SET cursor = ?, last_synced_at = ?, admitted_count = MAX(admitted_count, ?)
			 WHERE id = ?`,
			status.Cursor, lastSync, status.AdmittedCount, topicID,
		)
		if err != nil {
			return fmt.Errorf("committing progress for topic %s: %w", topicID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("committing progress for topic %s: %w", topicID, err)
		}
		if n == 0 {
			return fmt.Errorf("committing progress: unknown topic %s", topicID)
		}
		return nil
	})
}

// PageCommit is one walked page: the profiles it produced and the
// checkpoint to persist with them.
type PageCommit struct {
	TopicID  string
	Profiles []types.Profile
	Cursor   string
	SyncedAt time.Time
}

// CommitPage inserts the page's profiles, credits topics, and moves the
// walked topic's checkpoint in one transaction. The walked topic is credited
// with every inserted profile; any other topic with the inserted profiles
// that reference it. It returns the inserted profiles and the walked
// topic's admitted count after the commit.
func (s *Store) CommitPage(ctx context.Context, pc PageCommit) ([]types.Profile, int, error) {
	var (
		inserted []types.Profile
		admitted int
	)
	err := withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if inserted, err = insertProfiles(ctx, tx, pc.Profiles); err != nil {
			return err
		}

		for id, n := range pageCredits(inserted, pc.TopicID) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE topics SET admitted_count = admitted_count + ? WHERE id = ?`, n, id,
			); err != nil {
				return fmt.Errorf("crediting topic %s: %w", id, err)
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE topics SET cursor = ?, last_synced_at = ? WHERE id = ?`,
			pc.Cursor, formatTime(pc.SyncedAt), pc.TopicID,
		)
		if err != nil {
			return fmt.Errorf("committing progress for topic %s: %w", pc.TopicID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("committing progress: unknown topic %s", pc.TopicID)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT admitted_count FROM topics WHERE id = ?`, pc.TopicID,
		).Scan(&admitted); err != nil {
			return fmt.Errorf("reading progress for topic %s: %w", pc.TopicID, err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, 0, err
	}
	return inserted, admitted, nil
}

// pageCredits counts per topic the inserted profiles credited to it.
func pageCredits(inserted []types.Profile, walked string) map[string]int {
	credits := make(map[string]int)
	if len(inserted) > 0 {
		credits[walked] = len(inserted)
	}
	for _, p := range inserted {
		for _, id := range p.Topics {
			if id != "" && id != walked {
				credits[id]++
			}
		}
	}
	return credits
}
