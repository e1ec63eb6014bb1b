// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/talent-harvester/internal/catalog"
	"github.com/pdiddy/talent-harvester/internal/httputil"
	"github.com/pdiddy/talent-harvester/internal/store"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

// TopicSource discovers topics by keyword.
type TopicSource interface {
	SearchTopics(ctx context.Context, keyword string) ([]catalog.TopicHit, error)
}

// RunStore is the persistence the Orchestrator needs.
type RunStore interface {
	WalkStore
	FindTopic(ctx context.Context, name string) (*types.Topic, error)
	FindTopicByExternalID(ctx context.Context, externalID string) (*types.Topic, error)
	EnsureTopic(ctx context.Context, t types.Topic) (*types.Topic, error)
	StartRun(ctx context.Context, id string, at time.Time) error
	FinishRun(ctx context.Context, id string, at time.Time, admitted int, status string) error
}

// OrchestratorConfig tunes an Orchestrator.
type OrchestratorConfig struct {
	// Workers is the number of topics walked concurrently (minimum 1).
	Workers int
	// PartitionDelay is the pause after each topic walk.
	PartitionDelay time.Duration
	// MaxPartition skips discovered topics already at this many admissions.
	MaxPartition int
}

// RunSummary holds counts from a harvest run.
type RunSummary struct {
	RunID    string
	Keywords int
	Topics   int
	Skipped  int
	Walked   int
	Failed   int
	Admitted int
	// Stop is set when the run ended early on a global or session cap.
	Stop StopReason
}

// Orchestrator turns keywords into topics and walks each topic once per
// run under a shared admission controller.
type Orchestrator struct {
	topics    TopicSource
	store     RunStore
	resolver  *Resolver
	walker    *Walker
	admission *Controller
	cfg       OrchestratorConfig
	w         io.Writer
	now       func() time.Time

	mu      sync.Mutex
	visited map[string]bool
	summary RunSummary
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(topics TopicSource, st RunStore, resolver *Resolver, walker *Walker, admission *Controller, cfg OrchestratorConfig, w io.Writer) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if w == nil {
		w = io.Discard
	}
	return &Orchestrator{
		topics:    topics,
		store:     st,
		resolver:  resolver,
		walker:    walker,
		admission: admission,
		cfg:       cfg,
		w:         w,
		now:       time.Now,
		visited:   make(map[string]bool),
	}
}

// Run discovers topics for each keyword and walks them. It stops early when
// the global or session cap is reached. Upstream failures are logged and
// skipped; store failures and cancellation abort the run with an error.
func (o *Orchestrator) Run(ctx context.Context, keywords []string) (RunSummary, error) {
	o.summary = RunSummary{RunID: uuid.NewString()}
	if err := o.store.StartRun(ctx, o.summary.RunID, o.now()); err != nil {
		return o.summary, err
	}
	fmt.Fprintf(o.w, "run %s: %d keyword(s)\n", o.summary.RunID, len(keywords))

	err := o.run(ctx, keywords)

	status := store.RunFinished
	if err != nil {
		status = store.RunFailed
	}
	o.summary.Admitted = o.admission.Session()
	// Recorded even when ctx was cancelled.
	if ferr := o.store.FinishRun(context.WithoutCancel(ctx), o.summary.RunID, o.now(), o.summary.Admitted, status); ferr != nil && err == nil {
		err = ferr
	}

	fmt.Fprintf(o.w, "\nkeywords: %d, topics: %d, walked: %d, skipped: %d, failed: %d, admitted: %d\n",
		o.summary.Keywords, o.summary.Topics, o.summary.Walked, o.summary.Skipped,
		o.summary.Failed, o.summary.Admitted)
	return o.summary, err
}

func (o *Orchestrator) run(ctx context.Context, keywords []string) error {
	for _, kw := range keywords {
		if tier := o.admission.Check(nil); tier != TierNone {
			fmt.Fprintf(o.w, "%s cap reached, stopping run\n", tier)
			o.summary.Stop = stopFor(tier)
			return nil
		}
		o.summary.Keywords++

		topics, err := o.Discover(ctx, kw)
		if err != nil {
			return err
		}
		if err := o.WalkTopics(ctx, topics); err != nil {
			return err
		}
		if o.summary.Stop != "" {
			return nil
		}
	}
	return nil
}

// Discover finds the topics matching keyword that still need harvesting,
// creating unseen ones while global and session capacity remains. Topics
// already at the partition cap are skipped. A failed catalog search is
// logged and yields no topics.
func (o *Orchestrator) Discover(ctx context.Context, keyword string) ([]types.Topic, error) {
	hits, err := o.topics.SearchTopics(ctx, keyword)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fmt.Fprintf(o.w, "error fetching topics for %q: %v\n", keyword, err)
		return nil, nil
	}
	fmt.Fprintf(o.w, "fetched %d topics for keyword %q\n", len(hits), keyword)

	stored, err := o.store.CountProfiles(ctx)
	if err != nil {
		return nil, err
	}
	o.admission.SyncGlobal(stored)

	var topics []types.Topic
	for _, hit := range hits {
		existing, err := o.store.FindTopic(ctx, hit.DisplayName)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			if reached(o.cfg.MaxPartition, existing.SyncStatus.AdmittedCount) {
				fmt.Fprintf(o.w, "  skipping %q (already has %d researchers)\n",
					hit.DisplayName, existing.SyncStatus.AdmittedCount)
				o.addSkipped()
				continue
			}
		} else if tier := o.admission.Check(nil); tier != TierNone {
			fmt.Fprintf(o.w, "  skipping new topic %q: %s cap reached\n", hit.DisplayName, tier)
			o.addSkipped()
			continue
		}

		fieldID, err := o.resolver.Field(ctx, hit.FieldName)
		if err != nil {
			return nil, err
		}
		t, err := o.store.EnsureTopic(ctx, types.Topic{
			DisplayName: hit.DisplayName,
			ExternalID:  hit.ID,
			FieldID:     fieldID,
			SyncStatus:  types.FreshSyncStatus(),
		})
		if err != nil {
			return nil, err
		}
		if existing == nil {
			fmt.Fprintf(o.w, "  adding new topic %q\n", t.DisplayName)
		}
		if t.ExternalID == "" {
			o.addSkipped()
			continue
		}
		topics = append(topics, *t)
	}
	fmt.Fprintf(o.w, "%d topics need author fetching\n", len(topics))
	return topics, nil
}

// WalkTopics walks each topic not yet walked in this run, using up to
// cfg.Workers concurrent walks.
func (o *Orchestrator) WalkTopics(ctx context.Context, topics []types.Topic) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	for _, t := range topics {
		if !o.claim(t.ID) {
			continue
		}
		if o.stopped() {
			break
		}
		g.Go(func() error {
			return o.walkOne(gctx, t)
		})
	}
	return g.Wait()
}

// WalkTopic walks the stored topic with the given catalog id.
func (o *Orchestrator) WalkTopic(ctx context.Context, externalID string) (WalkResult, error) {
	t, err := o.store.FindTopicByExternalID(ctx, externalID)
	if err != nil {
		return WalkResult{}, err
	}
	if t == nil {
		return WalkResult{}, fmt.Errorf("unknown topic %s: run a harvest that discovers it first", externalID)
	}
	return o.walker.Walk(ctx, *t)
}

func (o *Orchestrator) walkOne(ctx context.Context, t types.Topic) error {
	if tier := o.admission.Check(nil); tier != TierNone {
		o.setStop(stopFor(tier))
		return nil
	}

	res, err := o.walker.Walk(ctx, t)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.summary.Topics++
	if res.Stop == StopUpstreamError {
		o.summary.Failed++
	} else {
		o.summary.Walked++
	}
	o.mu.Unlock()

	if res.Stop == StopGlobalCap || res.Stop == StopSessionCap {
		o.setStop(res.Stop)
		return nil
	}
	return httputil.Sleep(ctx, o.cfg.PartitionDelay)
}

func (o *Orchestrator) claim(topicID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.visited[topicID] {
		return false
	}
	o.visited[topicID] = true
	return true
}

func (o *Orchestrator) addSkipped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summary.Skipped++
}

func (o *Orchestrator) setStop(r StopReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.summary.Stop == "" {
		o.summary.Stop = r
	}
}

func (o *Orchestrator) stopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summary.Stop != ""
}
