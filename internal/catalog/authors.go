// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pdiddy/talent-harvester/pkg/types"
)

// PageRequest selects one page of authors tagged with a topic.
type PageRequest struct {
	// TopicID is the short OpenAlex topic id (e.g. "T10028").
	TopicID string
	// Cursor is the continuation token; "*" requests the first page.
	Cursor string
	// PerPage overrides the configured page size when positive.
	PerPage int
}

// Page is one page of catalog results. NextCursor is empty at end of stream.
type Page struct {
	Results    []Author
	NextCursor string
}

// FetchAuthors requests one page of authors for req.TopicID.
func (c *Client) FetchAuthors(ctx context.Context, req PageRequest) (*Page, error) {
	if req.TopicID == "" {
		return nil, fmt.Errorf("empty topic id")
	}
	cursor := req.Cursor
	if cursor == "" {
		cursor = types.StartCursor
	}
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = c.cfg.PerPage
	}

	params := url.Values{
		"filter":   {"topics.id:" + req.TopicID},
		"per-page": {strconv.Itoa(perPage)},
		"cursor":   {cursor},
	}

	var ar authorsResponse
	if err := c.getJSON(ctx, "/authors", params, &ar); err != nil {
		return nil, err
	}

	page := &Page{Results: ar.Results}
	if ar.Meta.NextCursor != nil {
		page.NextCursor = *ar.Meta.NextCursor
	}
	return page, nil
}

type authorsResponse struct {
	Meta    cursorMeta `json:"meta"`
	Results []Author   `json:"results"`
}

type cursorMeta struct {
	Count      int     `json:"count"`
	PerPage    int     `json:"per_page"`
	NextCursor *string `json:"next_cursor"`
}

// Author is the subset of an OpenAlex author record read by the normalizer.
// Optional numeric fields are pointers so absent and null values decode
// to nil.
type Author struct {
	ID                    string              `json:"id"`
	ORCID                 string              `json:"orcid"`
	DisplayName           string              `json:"display_name"`
	Affiliations          []AuthorAffiliation `json:"affiliations"`
	LastKnownInstitutions []InstitutionRef    `json:"last_known_institutions"`
	Topics                []TopicRef          `json:"topics"`
	SummaryStats          *SummaryStats       `json:"summary_stats"`
	CitedByCount          *int                `json:"cited_by_count"`
	WorksCount            *int                `json:"works_count"`
	CountsByYear          []YearCount         `json:"counts_by_year"`
	UpdatedDate           string              `json:"updated_date"`
}

// AuthorAffiliation is one historical institution of an author.
type AuthorAffiliation struct {
	Institution InstitutionRef `json:"institution"`
	Years       []int          `json:"years"`
}

// InstitutionRef is an institution as embedded in author records.
type InstitutionRef struct {
	ID          string `json:"id"`
	ROR         string `json:"ror"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
}

// Key returns the natural key of the institution: its ROR, or its display
// name when no ROR is known.
func (r InstitutionRef) Key() string {
	if r.ROR != "" {
		return r.ROR
	}
	return r.DisplayName
}

// TopicRef is a topic as embedded in author and topic-search records.
type TopicRef struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Field       *NameRef `json:"field"`
}

// FieldName returns the display name of the topic's field, or "".
func (r TopicRef) FieldName() string {
	if r.Field == nil {
		return ""
	}
	return r.Field.DisplayName
}

// NameRef is a nested object carrying only a display name.
type NameRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SummaryStats holds an author's bibliometric summaries.
type SummaryStats struct {
	HIndex               *int     `json:"h_index"`
	I10Index             *int     `json:"i10_index"`
	TwoYearMeanCitedness *float64 `json:"2yr_mean_citedness"`
}

// YearCount is one entry of counts_by_year.
type YearCount struct {
	Year         *int `json:"year"`
	WorksCount   *int `json:"works_count"`
	CitedByCount *int `json:"cited_by_count"`
}
