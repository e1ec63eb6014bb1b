// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/talent-harvester/internal/catalog"
	"github.com/pdiddy/talent-harvester/internal/store"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "talent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func intp(v int) *int { return &v }

// fakeNamer names countries from a fixed table and counts lookups.
type fakeNamer struct {
	mu    sync.Mutex
	names map[string]string
	calls int
}

func (n *fakeNamer) CountryName(_ context.Context, code string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	name, ok := n.names[code]
	if !ok {
		return "", errors.New("lookup failed")
	}
	return name, nil
}

// fakeSource serves pages keyed by topic and cursor.
type fakeSource struct {
	mu    sync.Mutex
	pages map[string]map[string]*catalog.Page
	errs  map[string]error
	calls []catalog.PageRequest
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages: make(map[string]map[string]*catalog.Page),
		errs:  make(map[string]error),
	}
}

func (f *fakeSource) add(topic, cursor, next string, authors ...catalog.Author) {
	if f.pages[topic] == nil {
		f.pages[topic] = make(map[string]*catalog.Page)
	}
	f.pages[topic][cursor] = &catalog.Page{Results: authors, NextCursor: next}
}

func (f *fakeSource) FetchAuthors(_ context.Context, req catalog.PageRequest) (*catalog.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.TopicID+"|"+req.Cursor]; err != nil {
		return nil, err
	}
	if p, ok := f.pages[req.TopicID][req.Cursor]; ok {
		return p, nil
	}
	return &catalog.Page{}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// author builds a raw catalog author tagged with one topic.
func author(id, orcid, name string, topics ...catalog.TopicRef) catalog.Author {
	return catalog.Author{
		ID:          "https://openalex.org/" + id,
		ORCID:       orcid,
		DisplayName: name,
		Affiliations: []catalog.AuthorAffiliation{{
			Institution: catalog.InstitutionRef{
				ROR:         "https://ror.org/042nb2s44",
				DisplayName: "MIT",
				CountryCode: "us",
			},
			Years: []int{2024, 2023},
		}},
		Topics:       topics,
		SummaryStats: &catalog.SummaryStats{HIndex: intp(10)},
		WorksCount:   intp(40),
		CitedByCount: intp(900),
	}
}

func topicRef(id, name, field string) catalog.TopicRef {
	return catalog.TopicRef{
		ID:          "https://openalex.org/" + id,
		DisplayName: name,
		Field:       &catalog.NameRef{DisplayName: field},
	}
}

// harness wires a Walker to a real store and a fake source.
type harness struct {
	store      *store.Store
	source     *fakeSource
	resolver   *Resolver
	normalizer *Normalizer
	admission  *Controller
	walker     *Walker
}

func newHarness(t *testing.T, caps types.CapsConfig) *harness {
	t.Helper()
	s := testStore(t)
	src := newFakeSource()
	resolver := NewResolver(s, &fakeNamer{names: map[string]string{"US": "United States"}}, nil)
	normalizer := NewNormalizer(resolver, s, NewSlugAllocator(s, nil))
	admission := NewController(caps)
	return &harness{
		store:      s,
		source:     src,
		resolver:   resolver,
		normalizer: normalizer,
		admission:  admission,
		walker:     NewWalker(src, s, normalizer, admission, WalkerConfig{PerPage: 200}, nil),
	}
}

// topic stores a topic with the given catalog id and returns it.
func (h *harness) topic(t *testing.T, externalID, name string) types.Topic {
	t.Helper()
	tp, err := h.store.EnsureTopic(context.Background(), types.Topic{
		DisplayName: name,
		ExternalID:  externalID,
		SyncStatus:  types.FreshSyncStatus(),
	})
	require.NoError(t, err)
	return *tp
}
