package types

import (
	"time"
)

// Level is a user's self-declared aquarium experience level.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// Levels lists all valid experience levels.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// IsValid reports whether l is one of the three known levels.
func (l Level) IsValid() bool {
	return l == LevelBeginner || l == LevelIntermediate || l == LevelAdvanced
}

// RoomNames is the closed set of group chat rooms. Rooms are created lazily
// on first join but the set of valid names never changes at runtime.
var RoomNames = []string{
	"Freshwater",
	"Saltwater",
	"Reef",
	"Community Tank",
	"Photos & Stories",
}

// IsValidRoom reports whether name is one of the fixed room names.
func IsValidRoom(name string) bool {
	for _, r := range RoomNames {
		if r == name {
			return true
		}
	}
	return false
}

// Identity is the per-connection record created by the authenticate event
// and destroyed on disconnect. The user ID is self-asserted at the socket
// layer; no token verification happens on this path.
type Identity struct {
	ConnID          string `json:"connId"`
	UserID          string `json:"userId"`
	Username        string `json:"username"`
	Level           Level  `json:"level"`
	FavoriteSpecies string `json:"favoriteSpecies,omitempty"`
	TankSetup       string `json:"tankSetup,omitempty"`
}

// QueueEntry is a waiting user's record inside one of the three level-keyed
// advice waitlists.
type QueueEntry struct {
	ConnID     string    `json:"connId"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Level      Level     `json:"level"`
	Topic      string    `json:"topic,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Participant is one side of an advice session, captured at match time.
// It binds to the connection id, so a reconnected user cannot resume.
type Participant struct {
	ConnID   string `json:"connId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Level    Level  `json:"level"`
}

// SessionMessage is a single message exchanged inside an advice session.
type SessionMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Photo     string    `json:"photo,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Feedback is a participant's rating of an advice session. Resubmission
// overwrites the previous entry for the same user.
type Feedback struct {
	UserID      string    `json:"userId"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// End reasons recorded on an advice session.
const (
	EndReasonRequested    = "requested"
	EndReasonDisconnected = "disconnected"
)

// AdviceSession is a 1-on-1 matched conversation. Once Ended is set no
// further messages are accepted; there is no transition back to active.
type AdviceSession struct {
	ID        string            `json:"id"`
	A         Participant       `json:"a"`
	B         Participant       `json:"b"`
	Topic     string            `json:"topic,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Messages  []*SessionMessage `json:"messages"`
	Ended     bool              `json:"ended"`
	EndedAt   time.Time         `json:"endedAt,omitzero"`
	EndedBy   string            `json:"endedBy,omitempty"` // connection id of the ending party
	EndReason string            `json:"endReason,omitempty"`
	Feedback  map[string]*Feedback `json:"feedback"`
}

// ParticipantByConn returns the participant bound to connID.
func (s *AdviceSession) ParticipantByConn(connID string) (Participant, bool) {
	switch connID {
	case s.A.ConnID:
		return s.A, true
	case s.B.ConnID:
		return s.B, true
	}
	return Participant{}, false
}

// PartnerOf returns the other participant of the session.
func (s *AdviceSession) PartnerOf(connID string) (Participant, bool) {
	switch connID {
	case s.A.ConnID:
		return s.B, true
	case s.B.ConnID:
		return s.A, true
	}
	return Participant{}, false
}

// HasParticipantConn reports whether connID is one of the two participants.
func (s *AdviceSession) HasParticipantConn(connID string) bool {
	return connID == s.A.ConnID || connID == s.B.ConnID
}

// HasParticipantUser reports whether userID belongs to either participant.
func (s *AdviceSession) HasParticipantUser(userID string) bool {
	return userID == s.A.UserID || userID == s.B.UserID
}

// RoomMessage is a group chat message broadcast to every member of a room,
// sender included.
type RoomMessage struct {
	ID        string              `json:"id"`
	Room      string              `json:"room"`
	UserID    string              `json:"userId"`
	Username  string              `json:"username"`
	Message   string              `json:"message"`
	Photo     string              `json:"photo,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Reactions map[string][]string `json:"reactions"`
}

// Stats is a point-in-time snapshot of server state for /api/stats.
type Stats struct {
	Connections    int            `json:"connections"`
	QueueSizes     map[Level]int  `json:"queueSizes"`
	ActiveSessions int            `json:"activeSessions"`
	TotalSessions  int            `json:"totalSessions"`
	RoomOccupancy  map[string]int `json:"roomOccupancy"`
}
