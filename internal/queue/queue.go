// Package queue implements the advice chat waitlists: one FIFO list per
// experience level.
package queue

import (
	"sync"
	"time"

	"tanktalk/pkg/types"
)

// Queue holds the three level-keyed waitlists. A connection occupies at
// most one list at a time: Enqueue unconditionally removes the connection
// from all lists before inserting, so re-joining (for example to change
// topic) replaces rather than duplicates the entry.
type Queue struct {
	mu    sync.RWMutex
	lists map[types.Level][]*types.QueueEntry
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		lists: map[types.Level][]*types.QueueEntry{
			types.LevelBeginner:     nil,
			types.LevelIntermediate: nil,
			types.LevelAdvanced:     nil,
		},
	}
}

// Enqueue appends the entry to its level list and returns its 1-based
// position. Any existing entry for the same connection is removed first.
func (q *Queue) Enqueue(e *types.QueueEntry) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(e.ConnID)
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}
	q.lists[e.Level] = append(q.lists[e.Level], e)
	return len(q.lists[e.Level])
}

// DequeueAll removes the connection from whichever list it occupies.
// Idempotent: removing an absent connection is a no-op.
func (q *Queue) DequeueAll(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(connID)
}

func (q *Queue) removeLocked(connID string) bool {
	removed := false
	for level, list := range q.lists {
		for i, e := range list {
			if e.ConnID == connID {
				q.lists[level] = append(list[:i], list[i+1:]...)
				removed = true
				break
			}
		}
	}
	return removed
}

// Snapshot returns a copy of one level list in FIFO order.
func (q *Queue) Snapshot(level types.Level) []*types.QueueEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	list := q.lists[level]
	out := make([]*types.QueueEntry, len(list))
	copy(out, list)
	return out
}

// Peek returns the oldest entry of a level list.
func (q *Queue) Peek(level types.Level) (*types.QueueEntry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	list := q.lists[level]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// Size returns the length of one level list.
func (q *Queue) Size(level types.Level) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.lists[level])
}

// Sizes returns the length of every level list.
func (q *Queue) Sizes() map[types.Level]int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make(map[types.Level]int, len(q.lists))
	for level, list := range q.lists {
		out[level] = len(list)
	}
	return out
}

// Contains reports whether the connection is queued at any level.
func (q *Queue) Contains(connID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, list := range q.lists {
		for _, e := range list {
			if e.ConnID == connID {
				return true
			}
		}
	}
	return false
}
