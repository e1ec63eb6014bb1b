// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/talent-harvester/internal/catalog"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

// ErrRejected marks a raw record that must not be admitted: it has no ORCID
// or a profile with its ORCID already exists.
var ErrRejected = errors.New("record rejected")

// ProfileChecker reports whether a profile with an ORCID is already stored.
type ProfileChecker interface {
	ProfileExists(ctx context.Context, orcid string) (bool, error)
}

// Normalizer maps raw catalog authors into Profiles, resolving every
// institution, country, field and topic reference through a Resolver.
type Normalizer struct {
	resolver *Resolver
	profiles ProfileChecker
	slugs    *SlugAllocator
	now      func() time.Time
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(resolver *Resolver, profiles ProfileChecker, slugs *SlugAllocator) *Normalizer {
	return &Normalizer{
		resolver: resolver,
		profiles: profiles,
		slugs:    slugs,
		now:      time.Now,
	}
}

// Admissible returns nil when a is a candidate for admission, or an error
// wrapping ErrRejected. It touches no reference entities.
func (n *Normalizer) Admissible(ctx context.Context, a catalog.Author) error {
	orcid := strings.TrimSpace(a.ORCID)
	if orcid == "" {
		return fmt.Errorf("%w: author %s has no ORCID", ErrRejected, catalog.StripID(a.ID))
	}
	exists, err := n.profiles.ProfileExists(ctx, orcid)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: ORCID %s already stored", ErrRejected, orcid)
	}
	return nil
}

// Normalize checks admissibility and then builds the profile for a.
func (n *Normalizer) Normalize(ctx context.Context, a catalog.Author, reserved map[string]struct{}) (*types.Profile, error) {
	if err := n.Admissible(ctx, a); err != nil {
		return nil, err
	}
	return n.Build(ctx, a, reserved)
}

// Build maps a into a Profile without re-checking admissibility. The slug
// is allocated against reserved, which the caller extends with the result.
func (n *Normalizer) Build(ctx context.Context, a catalog.Author, reserved map[string]struct{}) (*types.Profile, error) {
	tags := newTagSet()

	p := &types.Profile{
		ID:   uuid.NewString(),
		Name: strings.TrimSpace(a.DisplayName),
		Identifiers: types.Identifiers{
			ExternalID: catalog.StripID(a.ID),
			ORCID:      strings.TrimSpace(a.ORCID),
		},
		Affiliations:          []types.Affiliation{},
		LastKnownAffiliations: []string{},
		Topics:                []string{},
		CitationTrends:        []types.CitationTrend{},
		UpdatedAt:             n.now().UTC(),
	}

	for _, aff := range a.Affiliations {
		instID, countryID, err := n.resolver.Institution(ctx, aff.Institution)
		if err != nil {
			return nil, err
		}
		if instID == "" {
			continue
		}
		years := aff.Years
		if years == nil {
			years = []int{}
		}
		p.Affiliations = append(p.Affiliations, types.Affiliation{InstitutionID: instID, Years: years})
		tags.add(types.TagInstitution + instID)
		if countryID != "" {
			tags.add(types.TagCountry + countryID)
		}
	}

	seenInst := make(map[string]bool)
	for _, ref := range a.LastKnownInstitutions {
		instID, countryID, err := n.resolver.Institution(ctx, ref)
		if err != nil {
			return nil, err
		}
		if instID == "" || seenInst[instID] {
			continue
		}
		seenInst[instID] = true
		p.LastKnownAffiliations = append(p.LastKnownAffiliations, instID)
		tags.add(types.TagInstitution + instID)
		if countryID != "" {
			tags.add(types.TagCountry + countryID)
		}
	}

	seenTopic := make(map[string]bool)
	for _, ref := range a.Topics {
		topicID, fieldID, err := n.resolver.Topic(ctx, ref)
		if err != nil {
			return nil, err
		}
		if topicID == "" {
			continue
		}
		if fieldID != "" {
			tags.add(types.TagField + fieldID)
		}
		if seenTopic[topicID] {
			continue
		}
		seenTopic[topicID] = true
		p.Topics = append(p.Topics, topicID)
		tags.add(types.TagTopic + topicID)
	}

	p.Metrics = metrics(a)

	for _, yc := range a.CountsByYear {
		if yc.Year == nil {
			continue
		}
		p.CitationTrends = append(p.CitationTrends, types.CitationTrend{
			Year:         *yc.Year,
			WorksCount:   count(yc.WorksCount),
			CitedByCount: count(yc.CitedByCount),
		})
	}

	p.SourceUpdatedAt = parseUpdated(a.UpdatedDate)
	p.SearchTags = tags.list()

	slug, err := n.slugs.Allocate(ctx, p.Name, reserved)
	if err != nil {
		return nil, fmt.Errorf("allocating slug for %s: %w", p.Identifiers.ORCID, err)
	}
	p.Slug = slug

	return p, nil
}

func metrics(a catalog.Author) types.ResearchMetrics {
	m := types.ResearchMetrics{
		TotalCitations: count(a.CitedByCount),
		TotalWorks:     count(a.WorksCount),
	}
	if s := a.SummaryStats; s != nil {
		m.HIndex = count(s.HIndex)
		m.I10Index = count(s.I10Index)
		if s.TwoYearMeanCitedness != nil && *s.TwoYearMeanCitedness > 0 {
			m.TwoYearMeanCitedness = *s.TwoYearMeanCitedness
		}
	}
	return m
}

// count dereferences an optional non-negative count, defaulting to zero.
func count(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

var updatedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseUpdated(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range updatedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// tagSet is an insertion-ordered set of search tags.
type tagSet struct {
	seen  map[string]bool
	order []string
}

func newTagSet() *tagSet {
	return &tagSet{seen: make(map[string]bool)}
}

func (s *tagSet) add(tag string) {
	if s.seen[tag] {
		return
	}
	s.seen[tag] = true
	s.order = append(s.order, tag)
}

func (s *tagSet) list() []string {
	if s.order == nil {
		return []string{}
	}
	return s.order
}
