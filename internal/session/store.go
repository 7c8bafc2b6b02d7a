// Package session tracks active and ended 1-on-1 advice sessions.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tanktalk/pkg/types"
)

// Store holds every advice session created during the process lifetime.
// Sessions transition from active to ended exactly once (explicit end or
// participant disconnect) and never back. Ended sessions stay in memory
// until the retention sweep archives and evicts them; with the sweep
// disabled they accumulate forever, matching the original behavior.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*types.AdviceSession
	created  int // total sessions created, survives eviction
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*types.AdviceSession)}
}

// newSessionID builds a process-unique id from the creation timestamp and a
// random suffix. Uniqueness only needs to hold for the process lifetime.
func newSessionID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Create opens a session between two matched participants.
func (s *Store) Create(a, b types.Participant, topic string) *types.AdviceSession {
	now := time.Now()
	sess := &types.AdviceSession{
		ID:        newSessionID(now),
		A:         a,
		B:         b,
		Topic:     topic,
		CreatedAt: now,
		Messages:  []*types.SessionMessage{},
		Feedback:  make(map[string]*types.Feedback),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.created++
	s.mu.Unlock()
	return sess
}

// Get returns a session by id.
func (s *Store) Get(sessionID string) (*types.AdviceSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// PostMessage validates and appends a message from senderConnID, returning
// the stored message and the partner it should be relayed to. Delivery is
// private: the caller relays to the partner only, never broadcasts.
func (s *Store) PostMessage(sessionID, senderConnID, text, photo string) (*types.SessionMessage, types.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, types.Participant{}, ErrSessionNotFound
	}
	if sess.Ended {
		return nil, types.Participant{}, ErrSessionEnded
	}
	sender, ok := sess.ParticipantByConn(senderConnID)
	if !ok {
		return nil, types.Participant{}, ErrNotParticipant
	}
	partner, _ := sess.PartnerOf(senderConnID)

	msg := &types.SessionMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    sender.UserID,
		Username:  sender.Username,
		Message:   text,
		Photo:     photo,
		Timestamp: time.Now(),
	}
	sess.Messages = append(sess.Messages, msg)
	return msg, partner, nil
}

// End terminates a session at a participant's request. Both participants
// must be notified by the caller regardless of who ended it.
func (s *Store) End(sessionID, requesterConnID string) (*types.AdviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !sess.HasParticipantConn(requesterConnID) {
		return nil, ErrNotParticipant
	}
	if sess.Ended {
		return nil, ErrSessionEnded
	}

	sess.Ended = true
	sess.EndedAt = time.Now()
	sess.EndedBy = requesterConnID
	sess.EndReason = types.EndReasonRequested
	return sess, nil
}

// SubmitFeedback stores a participant's rating. The session does not have
// to be ended; feedback on a running session is accepted as-is. A second
// submission from the same user overwrites the first.
func (s *Store) SubmitFeedback(sessionID, userID string, rating int, comment string) (*types.Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !sess.HasParticipantUser(userID) {
		return nil, ErrNotParticipant
	}

	fb := &types.Feedback{
		UserID:      userID,
		Rating:      rating,
		Comment:     comment,
		SubmittedAt: time.Now(),
	}
	sess.Feedback[userID] = fb
	return fb, nil
}

// EndAllFor terminates every non-ended session that connID participates in
// and returns them, so the caller can notify each partner. Used on
// disconnect; unlike an explicit end, no feedback prompt follows.
func (s *Store) EndAllFor(connID string) []*types.AdviceSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ended []*types.AdviceSession
	for _, sess := range s.sessions {
		if sess.Ended || !sess.HasParticipantConn(connID) {
			continue
		}
		sess.Ended = true
		sess.EndedAt = time.Now()
		sess.EndedBy = connID
		sess.EndReason = types.EndReasonDisconnected
		ended = append(ended, sess)
	}
	return ended
}

// SweepEnded evicts sessions that ended before the cutoff and returns them
// for archival. Active sessions are never evicted.
func (s *Store) SweepEnded(cutoff time.Time) []*types.AdviceSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []*types.AdviceSession
	for id, sess := range s.sessions {
		if sess.Ended && sess.EndedAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	return evicted
}

// ActiveCount returns the number of non-ended sessions.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sess := range s.sessions {
		if !sess.Ended {
			n++
		}
	}
	return n
}

// CreatedCount returns how many sessions were created over the process
// lifetime, including archived and evicted ones.
func (s *Store) CreatedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created
}
