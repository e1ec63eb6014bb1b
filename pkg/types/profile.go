// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the talent-harvester
// pipeline: researcher profiles, reference entities and configuration.
package types

import "time"

// Search tag prefixes used in Profile.SearchTags.
const (
	TagInstitution = "institution:"
	TagCountry     = "country:"
	TagField       = "field:"
	TagTopic       = "topic:"
)

// Profile is a researcher record materialized from the catalog. At most one
// Profile exists per non-empty ORCID, and its slug never changes once
// assigned.
type Profile struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// Slug is the URL-safe unique handle. Empty when no slug could be
	// derived from the name.
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty"`

	Affiliations          []Affiliation   `json:"affiliations" yaml:"affiliations"`
	LastKnownAffiliations []string        `json:"last_known_affiliations" yaml:"last_known_affiliations"`
	Identifiers           Identifiers     `json:"identifiers" yaml:"identifiers"`
	Metrics               ResearchMetrics `json:"research_metrics" yaml:"research_metrics"`
	Topics                []string        `json:"topics" yaml:"topics"`
	CitationTrends        []CitationTrend `json:"citation_trends" yaml:"citation_trends"`
	SearchTags            []string        `json:"search_tags" yaml:"search_tags"`

	// SourceUpdatedAt is the catalog's last-modified time for the record.
	SourceUpdatedAt *time.Time `json:"source_updated_at,omitempty" yaml:"source_updated_at,omitempty"`

	// UpdatedAt is when this record was written locally.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Affiliation links a profile to an institution for a set of years.
type Affiliation struct {
	InstitutionID string `json:"institution" yaml:"institution"`
	Years         []int  `json:"years" yaml:"years"`
}

// Identifiers holds the external identifiers of a profile.
type Identifiers struct {
	ExternalID string `json:"external_id" yaml:"external_id"`
	ORCID      string `json:"orcid" yaml:"orcid"`
}

// ResearchMetrics are bibliometric summaries. Missing values are zero.
type ResearchMetrics struct {
	HIndex               int     `json:"h_index" yaml:"h_index"`
	I10Index             int     `json:"i10_index" yaml:"i10_index"`
	TwoYearMeanCitedness float64 `json:"two_year_mean_citedness" yaml:"two_year_mean_citedness"`
	TotalCitations       int     `json:"total_citations" yaml:"total_citations"`
	TotalWorks           int     `json:"total_works" yaml:"total_works"`
}

// CitationTrend is one year of output and citation counts.
type CitationTrend struct {
	Year         int `json:"year" yaml:"year"`
	WorksCount   int `json:"works_count" yaml:"works_count"`
	CitedByCount int `json:"cited_by_count" yaml:"cited_by_count"`
}
