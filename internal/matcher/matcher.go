// Package matcher pairs queued users into advice sessions.
package matcher

import (
	"tanktalk/internal/queue"
	"tanktalk/pkg/types"
)

// Matcher selects a counterpart for a newly queued user. It only reads and
// removes queue entries; session creation belongs to the caller. The
// read-then-remove sequence across two entries is not safe under concurrent
// access, so all calls must come from the dispatcher's single event
// goroutine.
type Matcher struct {
	queue *queue.Queue
}

// New creates a matcher over the given queue.
func New(q *queue.Queue) *Matcher {
	return &Matcher{queue: q}
}

// searchOrder is the level-preference table. The search stops at the first
// pool with a candidate; pools are never merged. Note the asymmetry:
// Intermediate requesters never look at the Beginner pool, so a Beginner
// and an Intermediate user only pair when the Beginner is the requester.
func searchOrder(level types.Level) []types.Level {
	switch level {
	case types.LevelBeginner:
		return []types.Level{types.LevelIntermediate, types.LevelAdvanced}
	case types.LevelIntermediate:
		return []types.Level{types.LevelIntermediate, types.LevelAdvanced}
	case types.LevelAdvanced:
		return []types.Level{types.LevelBeginner, types.LevelIntermediate, types.LevelAdvanced}
	default:
		return nil
	}
}

// Match searches for a counterpart for req, which is already enqueued. The
// requester's own entry is never a candidate: matching runs against the
// entries that existed before the requester joined. Within the chosen pool
// a requested topic picks the first entry with the same topic; otherwise,
// or when no entry carries the topic, the pool head (oldest) wins.
//
// On success both parties are removed from every list before returning, so
// a concurrent third join cannot see either of them. Returns nil when no
// candidate exists; the requester stays queued.
func (m *Matcher) Match(req *types.QueueEntry) *types.QueueEntry {
	for _, level := range searchOrder(req.Level) {
		pool := m.candidates(level, req.ConnID)
		if len(pool) == 0 {
			continue
		}

		candidate := pool[0]
		if req.Topic != "" {
			for _, e := range pool {
				if e.Topic == req.Topic {
					candidate = e
					break
				}
			}
		}

		// A stale self-reference slipping through indicates a caller bug;
		// treat it as no-match rather than pairing a user with themselves.
		if candidate.ConnID == req.ConnID {
			return nil
		}

		m.queue.DequeueAll(req.ConnID)
		m.queue.DequeueAll(candidate.ConnID)
		return candidate
	}
	return nil
}

// candidates returns the level pool in FIFO order minus the requester.
func (m *Matcher) candidates(level types.Level, requesterConnID string) []*types.QueueEntry {
	pool := m.queue.Snapshot(level)
	out := pool[:0:0]
	for _, e := range pool {
		if e.ConnID != requesterConnID {
			out = append(out, e)
		}
	}
	return out
}

// ResolveTopic picks the session topic: the requester's topic if present,
// else the candidate's, else empty.
func ResolveTopic(req, candidate *types.QueueEntry) string {
	if req.Topic != "" {
		return req.Topic
	}
	return candidate.Topic
}
