// Package stats counts the outcomes of reaction and message lifecycle events, which never reach
// a user, so their failures stay visible.
package stats

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type Event string

const (
	ReactionAdded   Event = "reaction_added"
	ReactionRemoved Event = "reaction_removed"
	MessageDeleted  Event = "message_deleted"
)

type Outcome string

const (
	Applied        Outcome = "applied"
	Cleared        Outcome = "cleared"
	NoMapping      Outcome = "no_mapping"
	NoMember       Outcome = "no_member"
	Self           Outcome = "self"
	IgnoredGuild   Outcome = "ignored_guild"
	StoreFailed    Outcome = "store_failed"
	PlatformFailed Outcome = "platform_failed"
)

var (
	events   = []Event{ReactionAdded, ReactionRemoved, MessageDeleted}
	outcomes = []Outcome{Applied, Cleared, NoMapping, NoMember, Self, IgnoredGuild, StoreFailed, PlatformFailed}
)

// Failed reports whether o is a failure rather than a skip or a success.
func (o Outcome) Failed() bool {
	return o == StoreFailed || o == PlatformFailed
}

type key struct {
	event   Event
	outcome Outcome
}

// Counters is a fixed table of atomic counters, one per event/outcome pair.
type Counters struct {
	logger *zap.SugaredLogger
	counts map[key]*atomic.Int64
}

func NewCounters(l *zap.SugaredLogger) *Counters {
	c := &Counters{logger: l, counts: make(map[key]*atomic.Int64, len(events)*len(outcomes))}
	for _, e := range events {
		for _, o := range outcomes {
			c.counts[key{e, o}] = atomic.NewInt64(0)
		}
	}
	return c
}

// Observe records one event outcome. Failures are logged together with their cause.
func (c *Counters) Observe(e Event, o Outcome, err error) {
	if n, ok := c.counts[key{e, o}]; ok {
		n.Inc()
	}
	if o.Failed() {
		c.logger.Errorf("Handling %s failed (%s): %s.", e, o, err)
	}
}

// Count returns the current value of one counter.
func (c *Counters) Count(e Event, o Outcome) int64 {
	if n, ok := c.counts[key{e, o}]; ok {
		return n.Load()
	}
	return 0
}

// Snapshot returns all non-zero counters keyed by event, then outcome.
func (c *Counters) Snapshot() map[Event]map[Outcome]int64 {
	s := map[Event]map[Outcome]int64{}
	for k, n := range c.counts {
		v := n.Load()
		if v == 0 {
			continue
		}
		if s[k.event] == nil {
			s[k.event] = map[Outcome]int64{}
		}
		s[k.event][k.outcome] = v
	}
	return s
}
