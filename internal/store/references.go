// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/talent-harvester/pkg/types"
)

// The Ensure* methods are insert-if-absent-else-read primitives keyed by
// each entity's natural key. A concurrent duplicate insert never overwrites
// the document that won; every caller reads back the stored row.

// FindCountry returns the country with code, or nil.
func (s *Store) FindCountry(ctx context.Context, code string) (*types.Country, error) {
	var c types.Country
	err := s.db.QueryRowContext(ctx,
		`SELECT code, display_name FROM countries WHERE code = ?`, code,
	).Scan(&c.Code, &c.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding country %s: %w", code, err)
	}
	return &c, nil
}

// EnsureCountry inserts c unless a country with the same code exists, and
// returns the stored country.
func (s *Store) EnsureCountry(ctx context.Context, c types.Country) (*types.Country, error) {
	err := withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO countries (code, display_name) VALUES (?, ?)
			 ON CONFLICT(code) DO NOTHING`,
			c.Code, c.DisplayName,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting country %s: %w", c.Code, err)
	}
	stored, err := s.FindCountry(ctx, c.Code)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("country %s missing after insert", c.Code)
	}
	return stored, nil
}

// FindField returns the field named name, or nil.
func (s *Store) FindField(ctx context.Context, name string) (*types.Field, error) {
	var f types.Field
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name FROM fields WHERE display_name = ?`, name,
	).Scan(&f.ID, &f.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding field %q: %w", name, err)
	}
	return &f, nil
}

// EnsureField inserts a field named name unless one exists, and returns the
// stored field.
func (s *Store) EnsureField(ctx context.Context, name string) (*types.Field, error) {
	err := withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO fields (id, display_name) VALUES (?, ?)
			 ON CONFLICT(display_name) DO NOTHING`,
			uuid.NewString(), name,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting field %q: %w", name, err)
	}
	stored, err := s.FindField(ctx, name)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("field %q missing after insert", name)
	}
	return stored, nil
}

// FindInstitution returns the institution with natural key key, or nil.
func (s *Store) FindInstitution(ctx context.Context, key string) (*types.Institution, error) {
	var (
		inst    types.Institution
		country sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, key, display_name, country_id FROM institutions WHERE key = ?`, key,
	).Scan(&inst.ID, &inst.Key, &inst.DisplayName, &country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding institution %q: %w", key, err)
	}
	inst.CountryID = country.String
	return &inst, nil
}

// EnsureInstitution inserts inst unless one with the same key exists, and
// returns the stored institution. inst.ID is assigned when empty.
func (s *Store) EnsureInstitution(ctx context.Context, inst types.Institution) (*types.Institution, error) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	var country any
	if inst.CountryID != "" {
		country = inst.CountryID
	}
	err := withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO institutions (id, key, display_name, country_id) VALUES (?, ?, ?, ?)
			 ON CONFLICT(key) DO NOTHING`,
			inst.ID, inst.Key, inst.DisplayName, country,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting institution %q: %w", inst.Key, err)
	}
	stored, err := s.FindInstitution(ctx, inst.Key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("institution %q missing after insert", inst.Key)
	}
	return stored, nil
}

const topicColumns = `id, display_name, external_id, field_id, cursor, last_synced_at, admitted_count`

func scanTopic(row interface{ Scan(...any) error }) (*types.Topic, error) {
	var (
		t        types.Topic
		field    sql.NullString
		lastSync sql.NullString
	)
	if err := row.Scan(&t.ID, &t.DisplayName, &t.ExternalID, &field,
		&t.SyncStatus.Cursor, &lastSync, &t.SyncStatus.AdmittedCount); err != nil {
		return nil, err
	}
	t.FieldID = field.String
	t.SyncStatus.LastSyncedAt = parseTime(lastSync)
	return &t, nil
}

// FindTopic returns the topic named name, or nil.
func (s *Store) FindTopic(ctx context.Context, name string) (*types.Topic, error) {
	t, err := scanTopic(s.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE display_name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding topic %q: %w", name, err)
	}
	return t, nil
}

// FindTopicByExternalID returns the topic with the given catalog id, or nil.
func (s *Store) FindTopicByExternalID(ctx context.Context, externalID string) (*types.Topic, error) {
	t, err := scanTopic(s.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE external_id = ? LIMIT 1`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding topic %s: %w", externalID, err)
	}
	return t, nil
}

// EnsureTopic inserts t with a fresh sync status unless a topic with the
// same display name exists, and returns the stored topic. An existing topic
// that lacks a catalog id adopts t.ExternalID; nothing else is overwritten.
func (s *Store) EnsureTopic(ctx context.Context, t types.Topic) (*types.Topic, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	var field any
	if t.FieldID != "" {
		field = t.FieldID
	}
	err := withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO topics (id, display_name, external_id, field_id, cursor, admitted_count)
			 VALUES (?, ?, ?, ?, ?, 0)
			 ON CONFLICT(display_name) DO UPDATE SET external_id = excluded.external_id
			 WHERE topics.external_id = '' AND excluded.external_id != ''`,
			t.ID, t.DisplayName, t.ExternalID, field, types.StartCursor,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting topic %q: %w", t.DisplayName, err)
	}
	stored, err := s.FindTopic(ctx, t.DisplayName)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("topic %q missing after insert", t.DisplayName)
	}
	return stored, nil
}

// ListTopics returns all topics ordered by display name.
func (s *Store) ListTopics(ctx context.Context) ([]types.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+topicColumns+` FROM topics ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	var topics []types.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		topics = append(topics, *t)
	}
	return topics, rows.Err()
}
