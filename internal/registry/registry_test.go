package registry

import (
	"testing"

	"tanktalk/pkg/types"
)

type nopSender struct{}

func (nopSender) Send(event string, data any) error { return nil }
func (nopSender) Close() error                      { return nil }

func TestAuthenticateIndexesBothWays(t *testing.T) {
	r := New()

	id := r.Authenticate("conn-1", nopSender{}, types.Identity{UserID: "ann", Username: "Ann", Level: types.LevelBeginner})
	if id.ConnID != "conn-1" {
		t.Errorf("expected conn id stamped on identity, got %q", id.ConnID)
	}

	byConn, ok := r.ByConn("conn-1")
	if !ok || byConn.Identity.UserID != "ann" {
		t.Fatalf("lookup by connection failed: %+v", byConn)
	}
	byUser, ok := r.ByUser("ann")
	if !ok || byUser.Identity.ConnID != "conn-1" {
		t.Fatalf("lookup by user failed: %+v", byUser)
	}
}

func TestReauthenticateReplacesUserIndex(t *testing.T) {
	r := New()
	r.Authenticate("conn-1", nopSender{}, types.Identity{UserID: "ann", Username: "Ann"})
	r.Authenticate("conn-1", nopSender{}, types.Identity{UserID: "ann2", Username: "Ann"})

	if _, ok := r.ByUser("ann"); ok {
		t.Error("old user id should be unindexed after re-authentication")
	}
	if c, ok := r.ByUser("ann2"); !ok || c.Identity.ConnID != "conn-1" {
		t.Error("new user id should resolve to the connection")
	}
	if r.Count() != 1 {
		t.Errorf("expected a single connection, got %d", r.Count())
	}
}

func TestUserIDClaimLastWins(t *testing.T) {
	r := New()
	r.Authenticate("conn-1", nopSender{}, types.Identity{UserID: "ann"})
	r.Authenticate("conn-2", nopSender{}, types.Identity{UserID: "ann"})

	c, ok := r.ByUser("ann")
	if !ok || c.Identity.ConnID != "conn-2" {
		t.Fatalf("expected newest connection to hold the user id, got %+v", c)
	}

	// Removing the superseded connection must not disturb the new claim.
	r.Remove("conn-1")
	if _, ok := r.ByUser("ann"); !ok {
		t.Error("user index should still point at conn-2")
	}
}

func TestRemoveIdempotent(t *testing.T) {
	r := New()
	r.Authenticate("conn-1", nopSender{}, types.Identity{UserID: "ann"})

	r.Remove("conn-1")
	r.Remove("conn-1")

	if _, ok := r.ByConn("conn-1"); ok {
		t.Error("connection should be gone")
	}
	if _, ok := r.ByUser("ann"); ok {
		t.Error("user index should be gone")
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}
