// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest turns catalog author pages into stored researcher
// profiles. A Walker paginates one topic with checkpointed cursors, a
// Normalizer maps raw authors to profiles through a memoizing Resolver, a
// Controller enforces the global, session and partition caps, and an
// Orchestrator drives keyword discovery over all of them.
package harvest

import (
	"sync"

	"github.com/pdiddy/talent-harvester/pkg/types"
)

// Tier names the capacity limit that stopped admission.
type Tier int

const (
	TierNone Tier = iota
	TierGlobal
	TierSession
	TierPartition
)

func (t Tier) String() string {
	switch t {
	case TierGlobal:
		return "global"
	case TierSession:
		return "session"
	case TierPartition:
		return "partition"
	default:
		return "none"
	}
}

// Controller gates admission against the global, session, and partition
// caps. Global and session counters are shared by every partition walk of a
// run and guarded by a single mutex; each walk owns its Partition counter.
//
// Slots are reserved before a record is normalized and settled after the
// batch insert returns, so concurrent walks cannot jointly overshoot a cap
// while counters only ever grow by committed records.
type Controller struct {
	mu      sync.Mutex
	caps    types.CapsConfig
	global  int
	session int
	pending int
}

// NewController creates a controller with the given caps and no admissions.
func NewController(caps types.CapsConfig) *Controller {
	return &Controller{caps: caps}
}

// Partition tracks admissions credited to one topic during a walk. It is
// not safe for concurrent use; a walk owns exactly one.
type Partition struct {
	count   int
	pending int
}

// NewPartition starts a partition counter at the persisted admitted count.
func NewPartition(admitted int) *Partition {
	return &Partition{count: admitted}
}

// Count returns the committed admissions credited to the partition.
func (p *Partition) Count() int {
	return p.count
}

// Observe raises the count to a stored admitted count, which also reflects
// credits from concurrent walks of other topics.
func (p *Partition) Observe(stored int) {
	if stored > p.count {
		p.count = stored
	}
}

// SyncGlobal raises the global count to a store count. It is ignored while
// slots are reserved, since stored may then include rows whose settlement is
// still to come. A stale count below the current one is ignored too.
func (c *Controller) SyncGlobal(stored int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == 0 && stored > c.global {
		c.global = stored
	}
}

// Session returns the number of records committed during this run.
func (c *Controller) Session() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Global returns the current global count.
func (c *Controller) Global() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.global
}

// Check reports which cap, if any, forbids admitting another record into p.
// A nil p checks only the global and session caps.
func (c *Controller) Check(p *Partition) Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripped(p)
}

func (c *Controller) tripped(p *Partition) Tier {
	switch {
	case reached(c.caps.MaxGlobal, c.global+c.pending):
		return TierGlobal
	case reached(c.caps.MaxSession, c.session+c.pending):
		return TierSession
	case p != nil && reached(c.caps.MaxPartition, p.count+p.pending):
		return TierPartition
	}
	return TierNone
}

func reached(limit, n int) bool {
	return limit > 0 && n >= limit
}

// Reserve claims one admission slot for p. It returns TierNone on success
// or the tier that is full.
func (c *Controller) Reserve(p *Partition) Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tier := c.tripped(p); tier != TierNone {
		return tier
	}
	c.pending++
	p.pending++
	return TierNone
}

// Settle resolves reserved slots of p once their batch insert returned:
// committed of them become admissions on all three counters, the rest are
// released.
func (c *Controller) Settle(p *Partition, reserved, committed int) {
	if committed > reserved {
		committed = reserved
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending -= reserved
	p.pending -= reserved
	c.global += committed
	c.session += committed
	p.count += committed
}
