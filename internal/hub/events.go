package hub

import (
	"encoding/json"

	"tanktalk/pkg/types"
)

// Event is one inbound realtime event awaiting dispatch. Sender is the
// originating connection's outbound channel; it accompanies every event so
// errors can be reported to connections that never authenticated.
type Event struct {
	ConnID string
	Sender Sender
	Name   string
	Data   json.RawMessage
}

// Sender mirrors registry.Sender for event intake.
type Sender interface {
	Send(event string, data any) error
	Close() error
}

// Inbound payloads.

type authenticatePayload struct {
	UserID          string      `json:"userId"`
	Username        string      `json:"username"`
	Level           types.Level `json:"level"`
	FavoriteSpecies string      `json:"favoriteSpecies"`
	TankSetup       string      `json:"tankSetup"`
}

type roomMessagePayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
	Photo   string `json:"photo"`
}

type joinQueuePayload struct {
	Level types.Level `json:"level"`
	Topic string      `json:"topic"`
}

type adviceMessagePayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Photo     string `json:"photo"`
}

type sessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

type feedbackPayload struct {
	SessionID string `json:"sessionId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// decodeRoomName accepts both the bare-string form ("Reef") and the object
// form ({"room":"Reef"}) used by different client versions.
func decodeRoomName(data json.RawMessage) string {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return name
	}
	var obj struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.Room
	}
	return ""
}

// Outbound payloads.

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type authenticatedData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type roomData struct {
	Room string `json:"room"`
}

type roomMemberData struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type queuedData struct {
	Level    types.Level `json:"level"`
	Topic    string      `json:"topic,omitempty"`
	Position int         `json:"position"`
}

type partnerData struct {
	Username string      `json:"username"`
	Level    types.Level `json:"level"`
}

type matchedData struct {
	SessionID string      `json:"sessionId"`
	Partner   partnerData `json:"partner"`
	Topic     string      `json:"topic,omitempty"`
}

type messageSentData struct {
	MessageID string `json:"messageId"`
}

type sessionRefData struct {
	SessionID string `json:"sessionId"`
}
