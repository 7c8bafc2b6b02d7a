package types

// Inbound realtime event names. Disconnect is synthesized by the transport
// layer when the read loop exits; clients never send it explicitly.
const (
	EventAuthenticate     = "authenticate"
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventRoomMessage      = "room-message"
	EventJoinAdviceQueue  = "join-advice-queue"
	EventLeaveAdviceQueue = "leave-advice-queue"
	EventAdviceMessage    = "advice-message"
	EventEndAdviceSession = "end-advice-session"
	EventSubmitFeedback   = "submit-feedback"
	EventDisconnect       = "disconnect"
)

// Outbound realtime event names.
const (
	EventAuthenticated       = "authenticated"
	EventRoomJoined          = "room-joined"
	EventRoomLeft            = "room-left"
	EventUserJoinedRoom      = "user-joined-room"
	EventUserLeftRoom        = "user-left-room"
	EventQueued              = "queued"
	EventQueueLeft           = "queue-left"
	EventMatched             = "matched"
	EventAdviceMessageSent   = "advice-message-sent"
	EventSessionEnded        = "session-ended"
	EventRequestFeedback     = "request-feedback"
	EventFeedbackSubmitted   = "feedback-submitted"
	EventPartnerDisconnected = "partner-disconnected"
	EventError               = "error"
)
