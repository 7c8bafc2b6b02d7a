// Package rooms tracks group room membership by connection id.
package rooms

import (
	"sync"

	"tanktalk/pkg/types"
)

// Tracker holds the member set of each room. Rooms are created lazily on
// first join and persist once created, even when empty. Name validation
// against the fixed room set happens at the dispatch layer.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // room name -> set of connection ids
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{rooms: make(map[string]map[string]struct{})}
}

// Join adds a connection to a room. Joining twice is a no-op.
func (t *Tracker) Join(room, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rooms[room] == nil {
		t.rooms[room] = make(map[string]struct{})
	}
	t.rooms[room][connID] = struct{}{}
}

// Leave removes a connection from a room, reporting whether it was a member.
func (t *Tracker) Leave(room, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	return true
}

// IsMember reports whether a connection belongs to a room.
func (t *Tracker) IsMember(room, connID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members, ok := t.rooms[room]
	if !ok {
		return false
	}
	_, ok = members[connID]
	return ok
}

// Members returns a snapshot of a room's member connection ids.
func (t *Tracker) Members(room string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := t.rooms[room]
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}

// RemoveAll removes a connection from every room and returns the names of
// the rooms it left, so the caller can notify remaining members.
func (t *Tracker) RemoveAll(connID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var left []string
	for room, members := range t.rooms {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			left = append(left, room)
		}
	}
	return left
}

// Occupancy returns member counts for every fixed room, including rooms
// nobody has joined yet.
func (t *Tracker) Occupancy() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]int, len(types.RoomNames))
	for _, name := range types.RoomNames {
		out[name] = len(t.rooms[name])
	}
	return out
}
