package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tanktalk/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive_test.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testUser(id, username string) *User {
	return &User{
		ID:           id,
		Username:     username,
		PasswordHash: []byte("hash"),
		Salt:         []byte("salt"),
		Level:        types.LevelIntermediate,
		CreatedAt:    time.Now(),
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, testUser("u1", "reefkeeper")); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := s.GetUserByUsername(ctx, "reefkeeper")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got == nil || got.ID != "u1" || got.Level != types.LevelIntermediate {
		t.Errorf("unexpected user %+v", got)
	}

	missing, err := s.GetUserByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown username, got %+v", missing)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, testUser("u1", "reefkeeper")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, testUser("u2", "reefkeeper")); err == nil {
		t.Error("expected unique constraint violation")
	}
}

func TestTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, testUser("u1", "reefkeeper")); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.SaveToken(ctx, "u1", "live-hash", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if err := s.SaveToken(ctx, "u1", "stale-hash", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("save token: %v", err)
	}

	got, err := s.GetUserByTokenHash(ctx, "live-hash")
	if err != nil {
		t.Fatalf("lookup token: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Errorf("unexpected user %+v", got)
	}

	expired, err := s.GetUserByTokenHash(ctx, "stale-hash")
	if err != nil {
		t.Fatalf("lookup expired token: %v", err)
	}
	if expired != nil {
		t.Error("expired tokens must not resolve")
	}

	unknown, err := s.GetUserByTokenHash(ctx, "never-issued")
	if err != nil {
		t.Fatalf("lookup unknown token: %v", err)
	}
	if unknown != nil {
		t.Error("unknown tokens must not resolve")
	}
}

func endedSession(id string) *types.AdviceSession {
	now := time.Now()
	sess := &types.AdviceSession{
		ID:        id,
		Topic:     "Coral",
		A:         types.Participant{ConnID: "c1", UserID: "u1", Username: "Ann", Level: types.LevelBeginner},
		B:         types.Participant{ConnID: "c2", UserID: "u2", Username: "Bo", Level: types.LevelAdvanced},
		CreatedAt: now.Add(-time.Hour),
		Ended:     true,
		EndedAt:   now,
		EndedBy:   "c1",
		EndReason: types.EndReasonRequested,
		Feedback:  map[string]*types.Feedback{},
	}
	sess.Messages = []*types.SessionMessage{
		{ID: "m1", SessionID: id, UserID: "u1", Username: "Ann", Message: "help", Timestamp: now.Add(-30 * time.Minute)},
	}
	sess.Feedback["u1"] = &types.Feedback{UserID: "u1", Rating: 5, Comment: "great", SubmittedAt: now}
	return sess
}

func TestArchiveSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ArchiveSession(ctx, endedSession("s1")); err != nil {
		t.Fatalf("archive session: %v", err)
	}
	if err := s.ArchiveSession(ctx, endedSession("s2")); err != nil {
		t.Fatalf("archive session: %v", err)
	}
	// Re-archiving the same session replaces rather than duplicating.
	if err := s.ArchiveSession(ctx, endedSession("s1")); err != nil {
		t.Fatalf("re-archive session: %v", err)
	}

	n, err := s.ArchivedSessionCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 archived sessions, got %d", n)
	}
}

func TestSaveFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fb := &types.Feedback{UserID: "u1", Rating: 3, Comment: "ok", SubmittedAt: time.Now()}
	if err := s.SaveFeedback(ctx, "s1", fb); err != nil {
		t.Fatalf("save feedback: %v", err)
	}
	// Resubmission upserts.
	fb.Rating = 5
	if err := s.SaveFeedback(ctx, "s1", fb); err != nil {
		t.Fatalf("upsert feedback: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestStore(t)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check: %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "close_test.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := s.CreateUser(context.Background(), testUser("u1", "late")); err == nil {
		t.Error("writes after close must fail")
	}
}
