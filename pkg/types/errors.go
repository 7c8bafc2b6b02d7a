package types

import "errors"

// Stable error codes carried on outbound error events. Clients that only
// display the message keep working; tests match on the code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeAlreadyEnded    = "ALREADY_ENDED"
)

// Validation errors shared across components.
var (
	ErrInvalidLevel    = errors.New("level must be Beginner, Intermediate or Advanced")
	ErrInvalidRoom     = errors.New("unknown room name")
	ErrInvalidUserID   = errors.New("user ID must be 1-64 characters, alphanumeric plus underscore/hyphen")
	ErrInvalidUsername = errors.New("username must be 1-50 characters")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds 4000 characters")
)
