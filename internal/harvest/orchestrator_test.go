// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/talent-harvester/internal/catalog"
	"github.com/pdiddy/talent-harvester/internal/store"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

type fakeTopics struct {
	mu       sync.Mutex
	hits     map[string][]catalog.TopicHit
	errs     map[string]error
	searched []string
}

func (f *fakeTopics) SearchTopics(_ context.Context, keyword string) ([]catalog.TopicHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, keyword)
	if err := f.errs[keyword]; err != nil {
		return nil, err
	}
	return f.hits[keyword], nil
}

func hit(id, name string) catalog.TopicHit {
	return catalog.TopicHit{ID: id, DisplayName: name, FieldName: "Physics"}
}

func newOrchestrator(h *harness, topics *fakeTopics, cfg OrchestratorConfig, log *bytes.Buffer) *Orchestrator {
	var w io.Writer
	if log != nil {
		w = log
	}
	return NewOrchestrator(topics, h.store, h.resolver, h.walker, h.admission, cfg, w)
}

func TestRunWalksEachTopicOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, types.CapsConfig{})
	topics := &fakeTopics{hits: map[string][]catalog.TopicHit{
		"quantum": {hit("T1", "Quantum Computing"), hit("T2", "Quantum Optics")},
		"optics":  {hit("T2", "Quantum Optics")},
	}}
	h.source.add("T1", "*", "", author("A1", orcid(1), "Ada Lovelace", quantum))
	h.source.add("T2", "*", "", author("A2", orcid(2), "Alan Turing"))

	var log bytes.Buffer
	o := newOrchestrator(h, topics, OrchestratorConfig{}, &log)
	summary, err := o.Run(ctx, []string{"quantum", "optics"})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Keywords)
	assert.Equal(t, 2, summary.Topics)
	assert.Equal(t, 2, summary.Walked)
	assert.Equal(t, 2, summary.Admitted)
	assert.Empty(t, summary.Stop)
	assert.Equal(t, 2, h.source.callCount(), "T2 is walked once across keywords")

	tp, err := h.store.FindTopicByExternalID(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NotEmpty(t, tp.FieldID)

	runs, err := h.store.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, store.RunFinished, runs[0].Status)
	assert.Equal(t, 2, runs[0].Admitted)
	assert.Contains(t, log.String(), "adding new topic \"Quantum Computing\"")
}

func TestDiscoverSkipsFullTopicsAndStopsCreatingAtCapacity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, types.CapsConfig{MaxGlobal: 1, MaxPartition: 3})
	full := h.topic(t, "T1", "Quantum Computing")
	require.NoError(t, h.store.CommitProgress(ctx, full.ID, types.SyncStatus{Cursor: "x", AdmittedCount: 3}))
	open := h.topic(t, "T2", "Quantum Optics")

	topics := &fakeTopics{hits: map[string][]catalog.TopicHit{
		"quantum": {hit("T1", "Quantum Computing"), hit("T2", "Quantum Optics"), hit("T3", "Quantum Chemistry")},
	}}
	o := newOrchestrator(h, topics, OrchestratorConfig{MaxPartition: 3}, nil)

	_, err := h.store.InsertProfiles(ctx, []types.Profile{{Name: "Old", Identifiers: types.Identifiers{ORCID: orcid(99)}}})
	require.NoError(t, err)

	got, err := o.Discover(ctx, "quantum")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)

	created, err := h.store.FindTopic(ctx, "Quantum Chemistry")
	require.NoError(t, err)
	assert.Nil(t, created, "no new topics once the global cap is reached")
}

func TestDiscoverAdoptsCatalogIDForKnownTopic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, types.CapsConfig{})
	_, err := h.store.EnsureTopic(ctx, types.Topic{DisplayName: "Quantum Computing"})
	require.NoError(t, err)

	o := newOrchestrator(h, &fakeTopics{hits: map[string][]catalog.TopicHit{
		"quantum": {hit("T1", "Quantum Computing")},
	}}, OrchestratorConfig{}, nil)

	got, err := o.Discover(ctx, "quantum")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "T1", got[0].ExternalID)
}

func TestRunToleratesSearchFailure(t *testing.T) {
	h := newHarness(t, types.CapsConfig{})
	topics := &fakeTopics{
		hits: map[string][]catalog.TopicHit{"optics": {hit("T2", "Quantum Optics")}},
		errs: map[string]error{"quantum": catalog.ErrUpstream},
	}
	h.source.add("T2", "*", "", author("A2", orcid(2), "Alan Turing"))

	var log bytes.Buffer
	summary, err := newOrchestrator(h, topics, OrchestratorConfig{}, &log).Run(context.Background(), []string{"quantum", "optics"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Admitted)
	assert.Contains(t, log.String(), "error fetching topics for \"quantum\"")
}

func TestRunStopsAtSessionCap(t *testing.T) {
	h := newHarness(t, types.CapsConfig{MaxSession: 1})
	topics := &fakeTopics{hits: map[string][]catalog.TopicHit{
		"quantum": {hit("T1", "Quantum Computing")},
		"optics":  {hit("T2", "Quantum Optics")},
	}}
	h.source.add("T1", "*", "",
		author("A1", orcid(1), "Ada Lovelace"),
		author("A2", orcid(2), "Alan Turing"))

	summary, err := newOrchestrator(h, topics, OrchestratorConfig{}, nil).Run(context.Background(), []string{"quantum", "optics"})
	require.NoError(t, err)
	assert.Equal(t, StopSessionCap, summary.Stop)
	assert.Equal(t, 1, summary.Admitted)
	assert.Equal(t, []string{"quantum"}, topics.searched)
}

func TestRunConcurrentWorkersRespectGlobalCap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, types.CapsConfig{MaxGlobal: 3})
	topics := &fakeTopics{hits: map[string][]catalog.TopicHit{
		"quantum": {hit("T1", "Quantum Computing"), hit("T2", "Quantum Optics"), hit("T3", "Quantum Chemistry")},
	}}
	n := 0
	for _, id := range []string{"T1", "T2", "T3"} {
		h.source.add(id, "*", "",
			author("A"+id+"a", orcid(n+1), "Jane Doe"),
			author("A"+id+"b", orcid(n+2), "Jane Doe"))
		n += 2
	}

	summary, err := newOrchestrator(h, topics, OrchestratorConfig{Workers: 3}, nil).Run(ctx, []string{"quantum"})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Admitted)

	count, err := h.store.CountProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	profiles, err := h.store.ListProfiles(ctx, store.ProfileQuery{})
	require.NoError(t, err)
	slugs := make(map[string]bool)
	for _, p := range profiles {
		assert.False(t, slugs[p.Slug], "slug %s handed out twice", p.Slug)
		slugs[p.Slug] = true
	}
}

type failingRunStore struct {
	RunStore
}

func (failingRunStore) CommitPage(context.Context, store.PageCommit) ([]types.Profile, int, error) {
	return nil, 0, errors.New("disk full")
}

func TestRunStoreFailureAbortsAndRecordsFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, types.CapsConfig{})
	failing := failingRunStore{RunStore: h.store}
	walker := NewWalker(h.source, failing, h.normalizer, h.admission, WalkerConfig{}, nil)
	h.source.add("T1", "*", "", author("A1", orcid(1), "Ada Lovelace"))

	o := NewOrchestrator(&fakeTopics{hits: map[string][]catalog.TopicHit{
		"quantum": {hit("T1", "Quantum Computing")},
	}}, failing, h.resolver, walker, h.admission, OrchestratorConfig{}, nil)

	_, err := o.Run(ctx, []string{"quantum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	runs, err := h.store.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
}

func TestWalkTopicUnknown(t *testing.T) {
	h := newHarness(t, types.CapsConfig{})
	o := newOrchestrator(h, &fakeTopics{}, OrchestratorConfig{}, nil)
	_, err := o.WalkTopic(context.Background(), "T404")
	assert.Error(t, err)
}

func TestWalkTopicKnown(t *testing.T) {
	h := newHarness(t, types.CapsConfig{})
	h.topic(t, "T1", "Quantum Computing")
	h.source.add("T1", "*", "", author("A1", orcid(1), "Ada Lovelace"))
	o := newOrchestrator(h, &fakeTopics{}, OrchestratorConfig{}, nil)

	res, err := o.WalkTopic(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Admitted)
}
