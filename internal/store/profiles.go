// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/talent-harvester/pkg/types"
)

// ProfileExists reports whether a profile with the given ORCID is stored.
func (s *Store) ProfileExists(ctx context.Context, orcid string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM researchers WHERE orcid = ? LIMIT 1`, orcid,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking profile %s: %w", orcid, err)
	}
	return true, nil
}

// SlugExists reports whether any stored profile uses slug.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM researchers WHERE slug = ? LIMIT 1`, slug,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking slug %s: %w", slug, err)
	}
	return true, nil
}

// CountProfiles returns the number of stored profiles.
func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM researchers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting profiles: %w", err)
	}
	return n, nil
}

// InsertProfiles stores profiles without ordering guarantees. A profile
// whose ORCID is already stored is dropped rather than failing the batch.
// It returns the profiles that were actually written.
func (s *Store) InsertProfiles(ctx context.Context, profiles []types.Profile) ([]types.Profile, error) {
	if len(profiles) == 0 {
		return nil, nil
	}

	var inserted []types.Profile
	err := withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if inserted, err = insertProfiles(ctx, tx, profiles); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// insertProfiles writes profiles and their tags within tx and returns the
// ones not dropped as duplicates.
func insertProfiles(ctx context.Context, tx *sql.Tx, profiles []types.Profile) ([]types.Profile, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO researchers (id, orcid, slug, name, external_id, affiliations,
			last_known_affiliations, research_metrics, topics, citation_trends,
			search_tags, source_updated_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(orcid) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	tagStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO researcher_tags (researcher_id, tag) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing tag insert: %w", err)
	}
	defer tagStmt.Close()

	var inserted []types.Profile
	for _, p := range profiles {
		if p.Identifiers.ORCID == "" {
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		args, err := profileArgs(p)
		if err != nil {
			return nil, err
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, fmt.Errorf("inserting profile %s: %w", p.Identifiers.ORCID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		for _, tag := range p.SearchTags {
			if _, err := tagStmt.ExecContext(ctx, p.ID, tag); err != nil {
				return nil, fmt.Errorf("inserting tag %s: %w", tag, err)
			}
		}
		inserted = append(inserted, p)
	}
	return inserted, nil
}

func profileArgs(p types.Profile) ([]any, error) {
	encode := func(v any) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encoding profile %s: %w", p.Identifiers.ORCID, err)
		}
		return string(data), nil
	}

	var cols []string
	for _, v := range []any{
		nonNil(p.Affiliations), nonNil(p.LastKnownAffiliations), p.Metrics,
		nonNil(p.Topics), nonNil(p.CitationTrends), nonNil(p.SearchTags),
	} {
		c, err := encode(v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}

	var slug, sourceUpdated any
	if p.Slug != "" {
		slug = p.Slug
	}
	if p.SourceUpdatedAt != nil {
		sourceUpdated = formatTime(*p.SourceUpdatedAt)
	}

	return []any{
		p.ID, p.Identifiers.ORCID, slug, p.Name, p.Identifiers.ExternalID,
		cols[0], cols[1], cols[2], cols[3], cols[4], cols[5],
		sourceUpdated, formatTime(p.UpdatedAt),
	}, nil
}

// nonNil keeps nil slices encoding as [] instead of null.
func nonNil(v any) any {
	switch s := v.(type) {
	case []types.Affiliation:
		if s == nil {
			return []types.Affiliation{}
		}
	case []types.CitationTrend:
		if s == nil {
			return []types.CitationTrend{}
		}
	case []string:
		if s == nil {
			return []string{}
		}
	}
	return v
}

// ProfileQuery filters ListProfiles.
type ProfileQuery struct {
	// Tag restricts results to profiles carrying this search tag.
	Tag string
	// Limit caps the number of results; zero means no limit.
	Limit int
}

// ListProfiles returns stored profiles ordered by slug.
func (s *Store) ListProfiles(ctx context.Context, q ProfileQuery) ([]types.Profile, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT r.id, r.orcid, r.slug, r.name, r.external_id, r.affiliations,
		r.last_known_affiliations, r.research_metrics, r.topics, r.citation_trends,
		r.search_tags, r.source_updated_at, r.updated_at FROM researchers r`)
	if q.Tag != "" {
		sb.WriteString(` JOIN researcher_tags t ON t.researcher_id = r.id WHERE t.tag = ?`)
		args = append(args, q.Tag)
	}
	sb.WriteString(` ORDER BY r.slug, r.orcid`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var profiles []types.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(rows *sql.Rows) (types.Profile, error) {
	var p types.Profile
	var slug, externalID, sourceUpdated sql.NullString
	var affiliations, lastKnown, metrics, topics, trends, tags sql.NullString
	var updated string
	if err := rows.Scan(&p.ID, &p.Identifiers.ORCID, &slug, &p.Name, &externalID,
		&affiliations, &lastKnown, &metrics, &topics, &trends, &tags,
		&sourceUpdated, &updated); err != nil {
		return p, fmt.Errorf("scanning profile: %w", err)
	}
	p.Slug = slug.String
	p.Identifiers.ExternalID = externalID.String
	p.SourceUpdatedAt = parseTime(sourceUpdated)
	if t := parseTime(sql.NullString{String: updated, Valid: true}); t != nil {
		p.UpdatedAt = *t
	}

	for _, col := range []struct {
		raw sql.NullString
		dst any
	}{
		{affiliations, &p.Affiliations},
		{lastKnown, &p.LastKnownAffiliations},
		{metrics, &p.Metrics},
		{topics, &p.Topics},
		{trends, &p.CitationTrends},
		{tags, &p.SearchTags},
	} {
		if !col.raw.Valid || col.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw.String), col.dst); err != nil {
			return p, fmt.Errorf("decoding profile %s: %w", p.Identifiers.ORCID, err)
		}
	}
	return p, nil
}
