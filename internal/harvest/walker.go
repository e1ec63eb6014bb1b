// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/talent-harvester/internal/catalog"
	"github.com/pdiddy/talent-harvester/internal/httputil"
	"github.com/pdiddy/talent-harvester/internal/store"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

// AuthorSource serves pages of authors for a topic.
type AuthorSource interface {
	FetchAuthors(ctx context.Context, req catalog.PageRequest) (*catalog.Page, error)
}

// WalkStore is the persistence the Walker needs besides reference
// resolution.
type WalkStore interface {
	GetProgress(ctx context.Context, topicID string) (types.SyncStatus, error)
	CountProfiles(ctx context.Context) (int, error)
	CommitPage(ctx context.Context, pc store.PageCommit) ([]types.Profile, int, error)
}

// State is a step of a partition walk.
type State int

const (
	StateStart State = iota
	StateFetching
	StateFiltering
	StateNormalizing
	StateCommitting
	StateDone
	StateFailed
)

func (s State) String() string {
	return [...]string{"start", "fetching", "filtering", "normalizing", "committing", "done", "failed"}[s]
}

// StopReason names why a walk ended.
type StopReason string

const (
	StopEmptyPage     StopReason = "empty-page"
	StopEndOfStream   StopReason = "end-of-stream"
	StopGlobalCap     StopReason = "global-cap"
	StopSessionCap    StopReason = "session-cap"
	StopPartitionCap  StopReason = "partition-cap"
	StopUpstreamError StopReason = "upstream-error"
)

func stopFor(t Tier) StopReason {
	switch t {
	case TierGlobal:
		return StopGlobalCap
	case TierSession:
		return StopSessionCap
	default:
		return StopPartitionCap
	}
}

// CapReached reports whether the walk ended on a capacity limit.
func (r StopReason) CapReached() bool {
	return r == StopGlobalCap || r == StopSessionCap || r == StopPartitionCap
}

// WalkResult summarizes one partition walk.
type WalkResult struct {
	TopicID  string
	Pages    int
	Fetched  int
	Rejected int
	Admitted int
	// Dropped counts normalized records the store refused as duplicates.
	Dropped int
	Stop    StopReason
	// Err is the upstream error that ended the walk, if any.
	Err error
}

// WalkerConfig tunes a Walker.
type WalkerConfig struct {
	PerPage   int
	PageDelay time.Duration
}

// Walker drives cursor pagination for one topic at a time: fetch a page,
// filter and normalize its records, insert the batch, then persist the
// cursor and admitted count. A walk is resumable from the last committed
// page.
type Walker struct {
	source     AuthorSource
	store      WalkStore
	normalizer *Normalizer
	admission  *Controller
	cfg        WalkerConfig
	w          io.Writer
	now        func() time.Time
}

// NewWalker creates a Walker.
func NewWalker(source AuthorSource, st WalkStore, normalizer *Normalizer, admission *Controller, cfg WalkerConfig, w io.Writer) *Walker {
	if w == nil {
		w = io.Discard
	}
	return &Walker{
		source:     source,
		store:      st,
		normalizer: normalizer,
		admission:  admission,
		cfg:        cfg,
		w:          w,
		now:        time.Now,
	}
}

// walk is the mutable state of one Walk call.
type walk struct {
	topic    types.Topic
	cursor   string
	part     *Partition
	page     *catalog.Page
	accepted []catalog.Author
	batch    []types.Profile
	reserved int
	halted   Tier
	slugs    map[string]struct{}
	res      WalkResult
}

// Walk harvests topic until a stop condition. Upstream failures end the walk
// with Stop set to StopUpstreamError and a nil error; the returned error is
// reserved for store failures and cancellation, which must stop the run.
func (wk *Walker) Walk(ctx context.Context, topic types.Topic) (WalkResult, error) {
	st := &walk{topic: topic, res: WalkResult{TopicID: topic.ID}}

	state := StateStart
	for state != StateDone && state != StateFailed {
		var err error
		switch state {
		case StateStart:
			state, err = wk.start(ctx, st)
		case StateFetching:
			state, err = wk.fetch(ctx, st)
		case StateFiltering:
			state, err = wk.filter(ctx, st)
		case StateNormalizing:
			state, err = wk.normalize(ctx, st)
		case StateCommitting:
			state, err = wk.commit(ctx, st)
		}
		if err != nil {
			return st.res, fmt.Errorf("walking topic %q (%s): %w", topic.DisplayName, state, err)
		}
	}
	return st.res, nil
}

func (wk *Walker) start(ctx context.Context, st *walk) (State, error) {
	progress, err := wk.store.GetProgress(ctx, st.topic.ID)
	if err != nil {
		return StateStart, err
	}
	stored, err := wk.store.CountProfiles(ctx)
	if err != nil {
		return StateStart, err
	}
	wk.admission.SyncGlobal(stored)

	st.cursor = progress.Cursor
	st.part = NewPartition(progress.AdmittedCount)

	if tier := wk.admission.Check(st.part); tier != TierNone {
		fmt.Fprintf(wk.w, "skipping topic %q: %s cap reached (admitted %d)\n",
			st.topic.DisplayName, tier, st.part.Count())
		return wk.done(st, stopFor(tier)), nil
	}

	fmt.Fprintf(wk.w, "fetching authors for topic %q (already %d)\n", st.topic.DisplayName, st.part.Count())
	return StateFetching, nil
}

func (wk *Walker) fetch(ctx context.Context, st *walk) (State, error) {
	if err := ctx.Err(); err != nil {
		return StateFetching, err
	}
	if tier := wk.admission.Check(st.part); tier != TierNone {
		fmt.Fprintf(wk.w, "  %s cap reached, stopping topic %q\n", tier, st.topic.DisplayName)
		return wk.done(st, stopFor(tier)), nil
	}

	page, err := wk.source.FetchAuthors(ctx, catalog.PageRequest{
		TopicID: st.topic.ExternalID,
		Cursor:  st.cursor,
		PerPage: wk.cfg.PerPage,
	})
	if err != nil {
		if ctx.Err() != nil {
			return StateFetching, ctx.Err()
		}
		fmt.Fprintf(wk.w, "  API error for topic %q: %v\n", st.topic.DisplayName, err)
		st.res.Err = err
		st.res.Stop = StopUpstreamError
		return StateFailed, nil
	}

	if len(page.Results) == 0 {
		fmt.Fprintf(wk.w, "  no more authors for topic %q\n", st.topic.DisplayName)
		return wk.done(st, StopEmptyPage), nil
	}

	st.page = page
	st.res.Pages++
	st.res.Fetched += len(page.Results)
	return StateFiltering, nil
}

func (wk *Walker) filter(ctx context.Context, st *walk) (State, error) {
	st.accepted = st.accepted[:0]
	seen := make(map[string]bool, len(st.page.Results))
	for _, a := range st.page.Results {
		orcid := strings.TrimSpace(a.ORCID)
		if orcid != "" && seen[orcid] {
			st.res.Rejected++
			continue
		}
		err := wk.normalizer.Admissible(ctx, a)
		if errors.Is(err, ErrRejected) {
			st.res.Rejected++
			continue
		}
		if err != nil {
			return StateFiltering, err
		}
		seen[orcid] = true
		st.accepted = append(st.accepted, a)
	}
	return StateNormalizing, nil
}

func (wk *Walker) normalize(ctx context.Context, st *walk) (State, error) {
	st.batch = st.batch[:0]
	st.reserved = 0
	st.halted = TierNone
	st.slugs = make(map[string]struct{})

	for _, a := range st.accepted {
		if tier := wk.admission.Reserve(st.part); tier != TierNone {
			st.halted = tier
			break
		}
		st.reserved++

		p, err := wk.normalizer.Build(ctx, a, st.slugs)
		if err != nil {
			wk.admission.Settle(st.part, st.reserved, 0)
			return StateNormalizing, err
		}
		if p.Slug != "" {
			st.slugs[p.Slug] = struct{}{}
		}
		st.batch = append(st.batch, *p)
	}
	return StateCommitting, nil
}

func (wk *Walker) commit(ctx context.Context, st *walk) (State, error) {
	// A page cut short by a cap, or the last page of the stream, keeps its
	// own cursor so the next run revisits it; already stored records are
	// filtered out then.
	next := st.page.NextCursor
	resume := next
	if st.halted != TierNone || next == "" {
		resume = st.cursor
	}

	// The batch and its checkpoint land together even if ctx is cancelled
	// meanwhile; cancellation is honored after the commit.
	inserted, admitted, err := wk.store.CommitPage(context.WithoutCancel(ctx), store.PageCommit{
		TopicID:  st.topic.ID,
		Profiles: st.batch,
		Cursor:   resume,
		SyncedAt: wk.now().UTC(),
	})
	if err != nil {
		wk.admission.Settle(st.part, st.reserved, 0)
		return StateCommitting, err
	}
	wk.admission.Settle(st.part, st.reserved, len(inserted))
	st.part.Observe(admitted)
	st.res.Admitted += len(inserted)
	st.res.Dropped += len(st.batch) - len(inserted)
	if len(inserted) > 0 {
		fmt.Fprintf(wk.w, "  inserted %d new authors for topic %q\n", len(inserted), st.topic.DisplayName)
	}

	if err := httputil.Sleep(ctx, wk.cfg.PageDelay); err != nil {
		return StateCommitting, err
	}

	switch {
	case st.halted != TierNone:
		fmt.Fprintf(wk.w, "  %s cap hit mid-page, stopping topic %q\n", st.halted, st.topic.DisplayName)
		return wk.done(st, stopFor(st.halted)), nil
	case next == "":
		fmt.Fprintf(wk.w, "  no next cursor, finished topic %q\n", st.topic.DisplayName)
		return wk.done(st, StopEndOfStream), nil
	}
	st.cursor = next
	return StateFetching, nil
}

func (wk *Walker) done(st *walk, reason StopReason) State {
	st.res.Stop = reason
	return StateDone
}
