// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/talent-harvester/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "talent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testProfile(orcid, name, slug string, tags ...string) types.Profile {
	return types.Profile{
		Name:        name,
		Slug:        slug,
		Identifiers: types.Identifiers{ExternalID: "A-" + orcid, ORCID: orcid},
		Metrics:     types.ResearchMetrics{HIndex: 3, TwoYearMeanCitedness: 1.5},
		SearchTags:  tags,
		UpdatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestOpenIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talent.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.EnsureField(context.Background(), "Physics")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	f, err := s.FindField(context.Background(), "Physics")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, path, s.Path())
}

func TestGetProgressUnknownTopic(t *testing.T) {
	s := testStore(t)
	status, err := s.GetProgress(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, types.FreshSyncStatus(), status)
}

func TestCommitProgress(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	topic, err := s.EnsureTopic(ctx, types.Topic{DisplayName: "Quantum Optics", ExternalID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, types.StartCursor, topic.SyncStatus.Cursor)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := types.SyncStatus{Cursor: "abc", LastSyncedAt: &now, AdmittedCount: 7}
	require.NoError(t, s.CommitProgress(ctx, topic.ID, want))
	require.NoError(t, s.CommitProgress(ctx, topic.ID, want), "repeated commit is a no-op")

	got, err := s.GetProgress(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Cursor)
	assert.Equal(t, 7, got.AdmittedCount)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, now.Equal(*got.LastSyncedAt))

	// A stale count never lowers the stored one.
	require.NoError(t, s.CommitProgress(ctx, topic.ID, types.SyncStatus{Cursor: "def", AdmittedCount: 2}))
	got, err = s.GetProgress(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, "def", got.Cursor)
	assert.Equal(t, 7, got.AdmittedCount)
}

func TestCommitProgressUnknownTopic(t *testing.T) {
	s := testStore(t)
	err := s.CommitProgress(context.Background(), "nope", types.FreshSyncStatus())
	assert.ErrorContains(t, err, "unknown topic")
}

func TestCommitPageCreditsTopicsAndCheckpoint(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	walked, err := s.EnsureTopic(ctx, types.Topic{DisplayName: "A"})
	require.NoError(t, err)
	other, err := s.EnsureTopic(ctx, types.Topic{DisplayName: "B"})
	require.NoError(t, err)

	// Concurrent credit from another walk must survive this walk's commits.
	_, _, err = s.CommitPage(ctx, PageCommit{
		TopicID:  other.ID,
		Profiles: []types.Profile{withTopics(testProfile("0000-0009", "Zed", "zed"), other.ID, walked.ID)},
		Cursor:   "b1",
		SyncedAt: time.Now(),
	})
	require.NoError(t, err)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	inserted, admitted, err := s.CommitPage(ctx, PageCommit{
		TopicID: walked.ID,
		Profiles: []types.Profile{
			withTopics(testProfile("0000-0001", "Jane Doe", "jane-doe"), walked.ID, other.ID),
			withTopics(testProfile("0000-0002", "John Roe", "john-roe"), walked.ID),
			withTopics(testProfile("0000-0009", "Zed Again", "zed-1"), walked.ID, other.ID),
		},
		Cursor:   "a1",
		SyncedAt: at,
	})
	require.NoError(t, err)
	assert.Len(t, inserted, 2)
	assert.Equal(t, 3, admitted)

	ga, err := s.GetProgress(ctx, walked.ID)
	require.NoError(t, err)
	assert.Equal(t, "a1", ga.Cursor)
	assert.Equal(t, 3, ga.AdmittedCount)
	require.NotNil(t, ga.LastSyncedAt)
	assert.True(t, at.Equal(*ga.LastSyncedAt))

	gb, err := s.GetProgress(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, gb.AdmittedCount)
	assert.Equal(t, "b1", gb.Cursor)
}

func TestCommitPageEmptyBatchMovesCursorOnly(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	topic, err := s.EnsureTopic(ctx, types.Topic{DisplayName: "A"})
	require.NoError(t, err)

	inserted, admitted, err := s.CommitPage(ctx, PageCommit{TopicID: topic.ID, Cursor: "next", SyncedAt: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.Zero(t, admitted)

	got, err := s.GetProgress(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, "next", got.Cursor)
}

func TestCommitPageUnknownTopicRollsBack(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, _, err := s.CommitPage(ctx, PageCommit{
		TopicID:  "nope",
		Profiles: []types.Profile{testProfile("0000-0001", "Jane Doe", "jane-doe")},
		Cursor:   "x",
		SyncedAt: time.Now(),
	})
	assert.ErrorContains(t, err, "unknown topic")

	n, err := s.CountProfiles(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "profiles are not stored without their checkpoint")
}

func withTopics(p types.Profile, ids ...string) types.Profile {
	p.Topics = ids
	return p
}

func TestEnsureCountryDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	c, err := s.EnsureCountry(ctx, types.Country{Code: "FR", DisplayName: "France"})
	require.NoError(t, err)
	assert.Equal(t, "France", c.DisplayName)

	c, err = s.EnsureCountry(ctx, types.Country{Code: "FR", DisplayName: "FR"})
	require.NoError(t, err)
	assert.Equal(t, "France", c.DisplayName)

	missing, err := s.FindCountry(ctx, "DE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEnsureFieldIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	f1, err := s.EnsureField(ctx, "Computer Science")
	require.NoError(t, err)
	f2, err := s.EnsureField(ctx, "Computer Science")
	require.NoError(t, err)
	assert.Equal(t, f1.ID, f2.ID)
	assert.NotEmpty(t, f1.ID)
}

func TestEnsureInstitution(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, err := s.EnsureCountry(ctx, types.Country{Code: "US", DisplayName: "United States"})
	require.NoError(t, err)

	first, err := s.EnsureInstitution(ctx, types.Institution{
		Key: "https://ror.org/03vek6s52", DisplayName: "Harvard University", CountryID: "US",
	})
	require.NoError(t, err)
	assert.Equal(t, "US", first.CountryID)

	second, err := s.EnsureInstitution(ctx, types.Institution{
		Key: "https://ror.org/03vek6s52", DisplayName: "Renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	noCountry, err := s.EnsureInstitution(ctx, types.Institution{Key: "Some Lab", DisplayName: "Some Lab"})
	require.NoError(t, err)
	assert.Empty(t, noCountry.CountryID)
}

func TestEnsureTopic(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	field, err := s.EnsureField(ctx, "Physics")
	require.NoError(t, err)

	created, err := s.EnsureTopic(ctx, types.Topic{DisplayName: "Lasers", FieldID: field.ID})
	require.NoError(t, err)
	assert.Empty(t, created.ExternalID)
	assert.Equal(t, field.ID, created.FieldID)

	// A later reference carrying the catalog id fills it in.
	adopted, err := s.EnsureTopic(ctx, types.Topic{DisplayName: "Lasers", ExternalID: "T42"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, adopted.ID)
	assert.Equal(t, "T42", adopted.ExternalID)
	assert.Equal(t, field.ID, adopted.FieldID)

	// An existing catalog id is never replaced.
	kept, err := s.EnsureTopic(ctx, types.Topic{DisplayName: "Lasers", ExternalID: "T99"})
	require.NoError(t, err)
	assert.Equal(t, "T42", kept.ExternalID)

	byExt, err := s.FindTopicByExternalID(ctx, "T42")
	require.NoError(t, err)
	require.NotNil(t, byExt)
	assert.Equal(t, created.ID, byExt.ID)

	none, err := s.FindTopicByExternalID(ctx, "T0")
	require.NoError(t, err)
	assert.Nil(t, none)

	topics, err := s.ListTopics(ctx)
	require.NoError(t, err)
	assert.Len(t, topics, 1)
}

func TestInsertProfilesDropsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	inserted, err := s.InsertProfiles(ctx, []types.Profile{
		testProfile("0000-0001", "Jane Doe", "jane-doe", "topic:t1"),
		testProfile("0000-0002", "John Roe", "john-roe"),
	})
	require.NoError(t, err)
	assert.Len(t, inserted, 2)

	inserted, err = s.InsertProfiles(ctx, []types.Profile{
		testProfile("0000-0001", "Jane Doe Again", "jane-doe-1"),
		testProfile("0000-0003", "Ann Poe", "ann-poe", "topic:t1"),
		testProfile("0000-0003", "Ann Poe Twin", "ann-poe-1"),
		testProfile("", "Nobody", "nobody"),
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, "0000-0003", inserted[0].Identifiers.ORCID)
	assert.NotEmpty(t, inserted[0].ID)

	n, err := s.CountProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	exists, err := s.ProfileExists(ctx, "0000-0001")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.ProfileExists(ctx, "9999")
	require.NoError(t, err)
	assert.False(t, exists)

	taken, err := s.SlugExists(ctx, "jane-doe")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = s.SlugExists(ctx, "jane-doe-1")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestListProfiles(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	p := testProfile("0000-0001", "Jane Doe", "jane-doe", "topic:t1", "country:US")
	p.Affiliations = []types.Affiliation{{InstitutionID: "i1", Years: []int{2020, 2021}}}
	p.CitationTrends = []types.CitationTrend{{Year: 2021, WorksCount: 2, CitedByCount: 9}}
	src := time.Date(2024, 1, 15, 5, 32, 10, 0, time.UTC)
	p.SourceUpdatedAt = &src

	_, err := s.InsertProfiles(ctx, []types.Profile{
		p,
		testProfile("0000-0002", "Adam Ant", "adam-ant", "topic:t2"),
	})
	require.NoError(t, err)

	all, err := s.ListProfiles(ctx, ProfileQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "adam-ant", all[0].Slug)

	tagged, err := s.ListProfiles(ctx, ProfileQuery{Tag: "topic:t1"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	got := tagged[0]
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, p.Affiliations, got.Affiliations)
	assert.Equal(t, p.CitationTrends, got.CitationTrends)
	assert.Equal(t, []string{"topic:t1", "country:US"}, got.SearchTags)
	assert.Equal(t, p.Metrics, got.Metrics)
	require.NotNil(t, got.SourceUpdatedAt)
	assert.True(t, src.Equal(*got.SourceUpdatedAt))
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))

	limited, err := s.ListProfiles(ctx, ProfileQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	var empty bytes.Buffer
	n, err := s.ExportJSON(ctx, &empty, ProfileQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.JSONEq(t, `[]`, empty.String())

	_, err = s.InsertProfiles(ctx, []types.Profile{testProfile("0000-0001", "Jane Doe", "jane-doe")})
	require.NoError(t, err)

	var jsonBuf bytes.Buffer
	n, err = s.ExportJSON(ctx, &jsonBuf, ProfileQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	var fromJSON []types.Profile
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Equal(t, "jane-doe", fromJSON[0].Slug)

	var yamlBuf bytes.Buffer
	n, err = s.ExportYAML(ctx, &yamlBuf, ProfileQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	var fromYAML []types.Profile
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, "0000-0001", fromYAML[0].Identifiers.ORCID)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.StartRun(ctx, "run-1", start))
	require.NoError(t, s.StartRun(ctx, "run-2", start.Add(time.Hour)))
	require.NoError(t, s.FinishRun(ctx, "run-1", start.Add(time.Minute), 12, RunFinished))

	runs, err := s.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, RunRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, 12, runs[1].Admitted)
	assert.Equal(t, RunFinished, runs[1].Status)
	require.NotNil(t, runs[1].FinishedAt)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, isBusy(errors.Join(errors.New("wrapped"), sqlite3.Error{Code: sqlite3.ErrLocked})))
	assert.False(t, isBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, isBusy(errors.New("plain")))
}
