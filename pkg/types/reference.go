// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StartCursor is the continuation token that requests the first page of a
// listing. An empty token means the listing is exhausted.
const StartCursor = "*"

// SyncStatus is the resumable pagination state of a Topic acting as a
// harvest partition.
type SyncStatus struct {
	// Cursor is the continuation token for the next page to fetch.
	Cursor string `json:"cursor" yaml:"cursor"`

	// LastSyncedAt is when a page was last committed, nil if never.
	LastSyncedAt *time.Time `json:"last_synced_at" yaml:"last_synced_at"`

	// AdmittedCount counts distinct researchers admitted against this
	// topic. It never decreases.
	AdmittedCount int `json:"admitted_count" yaml:"admitted_count"`
}

// FreshSyncStatus returns the status of a topic that has never been walked.
func FreshSyncStatus() SyncStatus {
	return SyncStatus{Cursor: StartCursor}
}

// Country is keyed by its upper-case ISO code.
type Country struct {
	Code        string `json:"code" yaml:"code"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Field is a coarse research category, unique by display name.
type Field struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Institution is keyed by its ROR, or by display name when no ROR is known.
type Institution struct {
	ID          string `json:"id" yaml:"id"`
	Key         string `json:"key" yaml:"key"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	CountryID   string `json:"country_id,omitempty" yaml:"country_id,omitempty"`
}

// Topic is both a reference entity of researcher profiles and a harvest
// partition with its own cursor. Topics are unique by display name.
type Topic struct {
	ID          string     `json:"id" yaml:"id"`
	ExternalID  string     `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	DisplayName string     `json:"display_name" yaml:"display_name"`
	FieldID     string     `json:"field_id,omitempty" yaml:"field_id,omitempty"`
	SyncStatus  SyncStatus `json:"sync_status" yaml:"sync_status"`
}
