// Package registry tracks live connections and their authenticated
// identities.
package registry

import (
	"sync"

	"tanktalk/pkg/types"
)

// Sender delivers outbound events to one connection. The websocket
// connection wrapper implements it; tests substitute an in-memory recorder.
type Sender interface {
	Send(event string, data any) error
	Close() error
}

// Client pairs an authenticated identity with its outbound channel.
type Client struct {
	Identity types.Identity
	Sender   Sender
}

// Registry maps connections to identities. Two co-indexed maps support
// lookup by connection id and by user id; every mutation updates both.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Client // connection id -> client
	byUser map[string]string  // user id -> connection id
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byConn: make(map[string]*Client),
		byUser: make(map[string]string),
	}
}

// Authenticate records the identity for connID. Re-authentication replaces
// the previous identity for the same connection; a user id claimed by an
// older connection is re-pointed to the new one. Last write wins: identity
// is self-asserted on this path.
func (r *Registry) Authenticate(connID string, sender Sender, id types.Identity) types.Identity {
	id.ConnID = connID

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[connID]; ok && prev.Identity.UserID != id.UserID {
		delete(r.byUser, prev.Identity.UserID)
	}
	r.byConn[connID] = &Client{Identity: id, Sender: sender}
	r.byUser[id.UserID] = connID
	return id
}

// ByConn returns the client for a connection id.
func (r *Registry) ByConn(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byConn[connID]
	return c, ok
}

// ByUser returns the client currently holding a user id.
func (r *Registry) ByUser(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	c, ok := r.byConn[connID]
	return c, ok
}

// Remove purges a connection from both indexes. Idempotent.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	// The user index may already point at a newer connection; only drop it
	// when it still references this one.
	if r.byUser[c.Identity.UserID] == connID {
		delete(r.byUser, c.Identity.UserID)
	}
}

// Count returns the number of authenticated connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
