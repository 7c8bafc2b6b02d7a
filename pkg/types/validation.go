package types

import "regexp"

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// IsValidUserID reports whether id is acceptable as a self-asserted user id.
// Connection ids are UUIDs, so the default identity always passes.
func IsValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// IsValidUsername reports whether name fits the display name constraints.
func IsValidUsername(name string) bool {
	return len(name) >= 1 && len(name) <= 50
}

const maxMessageLength = 4000

// ValidateMessageText checks chat message text for both room and advice
// messages.
func ValidateMessageText(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	if len(text) > maxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}
