// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/talent-harvester/pkg/types"
)

// ExportYAML writes the profiles matching q to w as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, q ProfileQuery) (int, error) {
	profiles, err := s.ListProfiles(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("querying for export: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(profiles); err != nil {
		return 0, fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("marshaling YAML: %w", err)
	}
	return len(profiles), nil
}

// ExportJSON writes the profiles matching q to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, q ProfileQuery) (int, error) {
	profiles, err := s.ListProfiles(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("querying for export: %w", err)
	}
	if profiles == nil {
		profiles = []types.Profile{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(profiles); err != nil {
		return 0, fmt.Errorf("marshaling JSON: %w", err)
	}
	return len(profiles), nil
}
