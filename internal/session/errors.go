package session

import "errors"

// Session store error types.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")
	ErrNotParticipant  = errors.New("not a participant of this session")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)
