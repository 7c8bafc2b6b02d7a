package matcher

import (
	"testing"

	"tanktalk/internal/queue"
	"tanktalk/pkg/types"
)

func entry(connID string, level types.Level, topic string) *types.QueueEntry {
	return &types.QueueEntry{
		ConnID:   connID,
		UserID:   "user-" + connID,
		Username: "name-" + connID,
		Level:    level,
		Topic:    topic,
	}
}

// join enqueues and matches the way the dispatcher does: the requester is
// in the queue before the match attempt.
func join(q *queue.Queue, m *Matcher, e *types.QueueEntry) *types.QueueEntry {
	q.Enqueue(e)
	return m.Match(e)
}

func TestBeginnerPrefersIntermediate(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("inter", types.LevelIntermediate, ""))
	q.Enqueue(entry("adv", types.LevelAdvanced, ""))

	got := join(q, m, entry("beg", types.LevelBeginner, ""))
	if got == nil || got.ConnID != "inter" {
		t.Fatalf("expected Intermediate candidate, got %+v", got)
	}
}

func TestBeginnerFallsBackToAdvanced(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("adv", types.LevelAdvanced, ""))

	got := join(q, m, entry("beg", types.LevelBeginner, ""))
	if got == nil || got.ConnID != "adv" {
		t.Fatalf("expected Advanced candidate, got %+v", got)
	}
}

// Intermediate requesters never search the Beginner pool. This asymmetry
// is part of the matching table, not a bug: a waiting Beginner only pairs
// with an Intermediate when the Beginner is the one who joins later.
func TestIntermediateDoesNotSearchBeginnerPool(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("beg", types.LevelBeginner, ""))

	if got := join(q, m, entry("inter", types.LevelIntermediate, "Coral")); got != nil {
		t.Fatalf("expected no match, got %+v", got)
	}
	if !q.Contains("beg") || !q.Contains("inter") {
		t.Error("expected both users to remain queued")
	}
}

func TestAdvancedSearchesBeginnerFirst(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("inter", types.LevelIntermediate, ""))
	q.Enqueue(entry("beg", types.LevelBeginner, ""))

	got := join(q, m, entry("adv", types.LevelAdvanced, ""))
	if got == nil || got.ConnID != "beg" {
		t.Fatalf("expected Beginner candidate, got %+v", got)
	}
}

func TestFIFOFairness(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("a", types.LevelIntermediate, ""))
	q.Enqueue(entry("b", types.LevelIntermediate, ""))

	got := join(q, m, entry("adv", types.LevelAdvanced, ""))
	if got == nil || got.ConnID != "a" {
		t.Fatalf("expected earliest entry a, got %+v", got)
	}
}

// A topic request picks the first entry with that topic even when an
// older entry without the topic is ahead of it.
func TestTopicPreferenceOverridesAge(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("x", types.LevelIntermediate, ""))
	q.Enqueue(entry("y", types.LevelIntermediate, "Coral"))

	got := join(q, m, entry("beg", types.LevelBeginner, "Coral"))
	if got == nil || got.ConnID != "y" {
		t.Fatalf("expected topic match y, got %+v", got)
	}
}

func TestTopicFallsBackToHead(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("x", types.LevelIntermediate, "Plants"))
	q.Enqueue(entry("y", types.LevelIntermediate, "Cichlids"))

	got := join(q, m, entry("beg", types.LevelBeginner, "Coral"))
	if got == nil || got.ConnID != "x" {
		t.Fatalf("expected head fallback x, got %+v", got)
	}
}

// Pool search stops at the first non-empty pool; pools are never merged,
// so a topic match in a later pool is invisible.
func TestPoolsAreNotMerged(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("inter", types.LevelIntermediate, ""))
	q.Enqueue(entry("adv", types.LevelAdvanced, "Coral"))

	got := join(q, m, entry("beg", types.LevelBeginner, "Coral"))
	if got == nil || got.ConnID != "inter" {
		t.Fatalf("expected first-pool head despite topic elsewhere, got %+v", got)
	}
}

func TestSelfMatchRejected(t *testing.T) {
	q := queue.New()
	m := New(q)

	// The requester is the sole Intermediate entry; its own entry must not
	// be selected even though it satisfies every pool-selection rule.
	if got := join(q, m, entry("solo", types.LevelIntermediate, "Coral")); got != nil {
		t.Fatalf("expected no match against self, got %+v", got)
	}
	if !q.Contains("solo") {
		t.Error("expected requester to remain queued")
	}
}

// Both parties leave every queue before the session exists, so a third
// join cannot see either of them.
func TestAtomicRemoval(t *testing.T) {
	q := queue.New()
	m := New(q)

	q.Enqueue(entry("a", types.LevelIntermediate, ""))
	req := entry("b", types.LevelBeginner, "")
	if got := join(q, m, req); got == nil {
		t.Fatal("expected a match")
	}

	if q.Contains("a") || q.Contains("b") {
		t.Fatal("expected both parties removed from all queues")
	}
	if got := join(q, m, entry("c", types.LevelBeginner, "")); got != nil {
		t.Errorf("expected no candidate left for third user, got %+v", got)
	}
}

func TestNoCandidates(t *testing.T) {
	q := queue.New()
	m := New(q)

	if got := join(q, m, entry("a", types.LevelBeginner, "")); got != nil {
		t.Fatalf("expected no match on empty pools, got %+v", got)
	}
	if !q.Contains("a") {
		t.Error("caller should remain queued after a failed attempt")
	}
}

func TestResolveTopic(t *testing.T) {
	tests := []struct {
		name      string
		requester string
		candidate string
		want      string
	}{
		{"requester topic wins", "Coral", "Plants", "Coral"},
		{"candidate topic fallback", "", "Plants", "Plants"},
		{"no topic", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := entry("a", types.LevelBeginner, tt.requester)
			cand := entry("b", types.LevelIntermediate, tt.candidate)
			if got := ResolveTopic(req, cand); got != tt.want {
				t.Errorf("ResolveTopic = %q, want %q", got, tt.want)
			}
		})
	}
}
