// Package hub is the event dispatcher: the sole entry point translating
// inbound realtime events into registry, room, queue, matcher and session
// operations, and routing outbound notifications.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tanktalk/internal/archive"
	"tanktalk/internal/matcher"
	"tanktalk/internal/queue"
	"tanktalk/internal/registry"
	"tanktalk/internal/rooms"
	"tanktalk/internal/session"
	"tanktalk/pkg/types"
)

// sweep is an internal tick, never received from clients.
const eventSweep = "internal-sweep"

// Hub consumes events from a buffered channel on a single goroutine, so
// every handler runs to completion before the next event from any
// connection. That serialization is what makes the matcher's
// read-then-remove sequence and the registry's co-indexed maps safe without
// cross-component locking.
type Hub struct {
	events   chan Event
	shutdown chan struct{}
	running  bool
	mu       sync.RWMutex

	registry *registry.Registry
	rooms    *rooms.Tracker
	queue    *queue.Queue
	matcher  *matcher.Matcher
	sessions *session.Store
	archive  *archive.Store // optional; nil disables archival

	retention     time.Duration // 0 disables the ended-session sweep
	sweepInterval time.Duration
}

// Options configures optional hub behavior.
type Options struct {
	Archive          *archive.Store
	SessionRetention time.Duration
	SweepInterval    time.Duration
}

// New creates a hub over the given components.
func New(reg *registry.Registry, tracker *rooms.Tracker, q *queue.Queue, store *session.Store, opts Options) *Hub {
	interval := opts.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Hub{
		events:        make(chan Event, 1000),
		shutdown:      make(chan struct{}),
		registry:      reg,
		rooms:         tracker,
		queue:         q,
		matcher:       matcher.New(q),
		sessions:      store,
		archive:       opts.Archive,
		retention:     opts.SessionRetention,
		sweepInterval: interval,
	}
}

// Start begins event processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	slog.Info("starting event hub", "retention", h.retention)
	go h.run(ctx)
	if h.retention > 0 {
		go h.sweepLoop(ctx)
	}
	return nil
}

// Stop shuts down event processing. Queued events are dropped.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}
	return nil
}

// Dispatch queues an inbound event. Non-blocking: a full channel is
// reported to the caller rather than stalling the transport read loop.
func (h *Hub) Dispatch(ev Event) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.events <- ev:
		return nil
	default:
		return ErrEventChannelFull
	}
}

func (h *Hub) run(ctx context.Context) {
	defer slog.Info("event hub stopped")
	for {
		select {
		case ev := <-h.events:
			h.handleEvent(ev)
		case <-h.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Routed through the event channel so eviction runs on the
			// same goroutine as every other state mutation.
			_ = h.Dispatch(Event{Name: eventSweep})
		case <-h.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleEvent runs one event to completion: all state mutation and all
// outbound emits. Validation failures go back to the originating
// connection only and never affect other connections' state.
func (h *Hub) handleEvent(ev Event) {
	switch ev.Name {
	case types.EventAuthenticate:
		h.handleAuthenticate(ev)
	case types.EventJoinRoom:
		h.handleJoinRoom(ev)
	case types.EventLeaveRoom:
		h.handleLeaveRoom(ev)
	case types.EventRoomMessage:
		h.handleRoomMessage(ev)
	case types.EventJoinAdviceQueue:
		h.handleJoinAdviceQueue(ev)
	case types.EventLeaveAdviceQueue:
		h.handleLeaveAdviceQueue(ev)
	case types.EventAdviceMessage:
		h.handleAdviceMessage(ev)
	case types.EventEndAdviceSession:
		h.handleEndAdviceSession(ev)
	case types.EventSubmitFeedback:
		h.handleSubmitFeedback(ev)
	case types.EventDisconnect:
		h.handleDisconnect(ev)
	case eventSweep:
		h.handleSweep()
	default:
		h.sendError(ev.Sender, types.CodeInvalidArgument, "unknown event: "+ev.Name)
	}
}

// handleAuthenticate records self-asserted identity for the connection.
// There is no failure path: unusable fields fall back to defaults.
func (h *Hub) handleAuthenticate(ev Event) {
	var p authenticatePayload
	if len(ev.Data) > 0 {
		_ = json.Unmarshal(ev.Data, &p)
	}

	if p.UserID == "" || !types.IsValidUserID(p.UserID) {
		p.UserID = ev.ConnID
	}
	if !types.IsValidUsername(p.Username) {
		p.Username = "hobbyist-" + shortID(ev.ConnID)
	}
	if !p.Level.IsValid() {
		p.Level = types.LevelBeginner
	}

	id := h.registry.Authenticate(ev.ConnID, ev.Sender, types.Identity{
		UserID:          p.UserID,
		Username:        p.Username,
		Level:           p.Level,
		FavoriteSpecies: p.FavoriteSpecies,
		TankSetup:       p.TankSetup,
	})

	slog.Info("connection authenticated", "conn", ev.ConnID, "user", id.UserID)
	h.send(ev.Sender, types.EventAuthenticated, authenticatedData{UserID: id.UserID, Username: id.Username})
}

func (h *Hub) handleJoinRoom(ev Event) {
	client, ok := h.registry.ByConn(ev.ConnID)
	if !ok {
		h.sendError(ev.Sender, types.CodeUnauthenticated, "authenticate before joining rooms")
		return
	}

	room := decodeRoomName(ev.Data)
	if !types.IsValidRoom(room) {
		h.sendError(ev.Sender, types.CodeInvalidArgument, types.ErrInvalidRoom.Error())
		return
	}

	h.rooms.Join(room, ev.ConnID)
	h.send(ev.Sender, types.EventRoomJoined, roomData{Room: room})
	h.notifyRoom(room, ev.ConnID, types.EventUserJoinedRoom, roomMemberData{
		Room:     room,
		UserID:   client.Identity.UserID,
		Username: client.Identity.Username,
	})
}

func (h *Hub) handleLeaveRoom(ev Event) {
	room := decodeRoomName(ev.Data)
	if client, ok := h.registry.ByConn(ev.ConnID); ok && h.rooms.Leave(room, ev.ConnID) {
		h.notifyRoom(room, ev.ConnID, types.EventUserLeftRoom, roomMemberData{
			Room:     room,
			UserID:   client.Identity.UserID,
			Username: client.Identity.Username,
		})
	}
	h.send(ev.Sender, types.EventRoomLeft, roomData{Room: room})
}

// handleRoomMessage broadcasts to every member of the room, sender
// included, so all clients render the same message id and timestamp.
func (h *Hub) handleRoomMessage(ev Event) {
	client, ok := h.registry.ByConn(ev.ConnID)
	if !ok {
		h.sendError(ev.Sender, types.CodeUnauthenticated, "authenticate before sending messages")
		return
	}

	var p roomMessagePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		h.sendError(ev.Sender, types.CodeInvalidArgument, "malformed room-message payload")
		return
	}
	if !h.rooms.IsMember(p.Room, ev.ConnID) {
		h.sendError(ev.Sender, types.CodeUnauthorized, "not a member of this room")
		return
	}
	if err := types.ValidateMessageText(p.Message); err != nil {
		h.sendError(ev.Sender, types.CodeInvalidArgument, err.Error())
		return
	}

	msg := &types.RoomMessage{
		ID:        uuid.NewString(),
		Room:      p.Room,
		UserID:    client.Identity.UserID,
		Username:  client.Identity.Username,
		Message:   p.Message,
		Photo:     p.Photo,
		Timestamp: time.Now(),
		Reactions: map[string][]string{},
	}
	for _, connID := range h.rooms.Members(p.Room) {
		h.sendToConn(connID, types.EventRoomMessage, msg)
	}
}

// handleJoinAdviceQueue enqueues the caller, reports the queue position and
// immediately attempts a match against the entries that were already
// waiting.
func (h *Hub) handleJoinAdviceQueue(ev Event) {
	client, ok := h.registry.ByConn(ev.ConnID)
	if !ok {
		h.sendError(ev.Sender, types.CodeUnauthenticated, "authenticate before joining the advice queue")
		return
	}

	var p joinQueuePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		h.sendError(ev.Sender, types.CodeInvalidArgument, "malformed join-advice-queue payload")
		return
	}
	if !p.Level.IsValid() {
		h.sendError(ev.Sender, types.CodeInvalidArgument, types.ErrInvalidLevel.Error())
		return
	}

	entry := &types.QueueEntry{
		ConnID:     ev.ConnID,
		UserID:     client.Identity.UserID,
		Username:   client.Identity.Username,
		Level:      p.Level,
		Topic:      p.Topic,
		EnqueuedAt: time.Now(),
	}
	position := h.queue.Enqueue(entry)
	h.send(ev.Sender, types.EventQueued, queuedData{Level: p.Level, Topic: p.Topic, Position: position})

	candidate := h.matcher.Match(entry)
	if candidate == nil {
		return
	}

	topic := matcher.ResolveTopic(entry, candidate)
	sess := h.sessions.Create(
		types.Participant{ConnID: entry.ConnID, UserID: entry.UserID, Username: entry.Username, Level: entry.Level},
		types.Participant{ConnID: candidate.ConnID, UserID: candidate.UserID, Username: candidate.Username, Level: candidate.Level},
		topic,
	)
	slog.Info("advice match", "session", sess.ID, "a", entry.UserID, "b", candidate.UserID, "topic", topic)

	// Symmetric but personalized: each side sees the other's public info.
	h.send(ev.Sender, types.EventMatched, matchedData{
		SessionID: sess.ID,
		Partner:   partnerData{Username: candidate.Username, Level: candidate.Level},
		Topic:     topic,
	})
	h.sendToConn(candidate.ConnID, types.EventMatched, matchedData{
		SessionID: sess.ID,
		Partner:   partnerData{Username: entry.Username, Level: entry.Level},
		Topic:     topic,
	})
}

// handleLeaveAdviceQueue is the sole cancellation primitive for a pending
// match attempt: immediate and unconditional.
func (h *Hub) handleLeaveAdviceQueue(ev Event) {
	h.queue.DequeueAll(ev.ConnID)
	h.send(ev.Sender, types.EventQueueLeft, nil)
}

func (h *Hub) handleAdviceMessage(ev Event) {
	if _, ok := h.registry.ByConn(ev.ConnID); !ok {
		h.sendError(ev.Sender, types.CodeUnauthenticated, "authenticate before sending messages")
		return
	}

	var p adviceMessagePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		h.sendError(ev.Sender, types.CodeInvalidArgument, "malformed advice-message payload")
		return
	}
	if err := types.ValidateMessageText(p.Message); err != nil {
		h.sendError(ev.Sender, types.CodeInvalidArgument, err.Error())
		return
	}

	msg, partner, err := h.sessions.PostMessage(p.SessionID, ev.ConnID, p.Message, p.Photo)
	if err != nil {
		h.sendSessionError(ev.Sender, err)
		return
	}

	// Private delivery: the partner's connection only, never a broadcast.
	h.sendToConn(partner.ConnID, types.EventAdviceMessage, msg)
	h.send(ev.Sender, types.EventAdviceMessageSent, messageSentData{MessageID: msg.ID})
}

func (h *Hub) handleEndAdviceSession(ev Event) {
	if _, ok := h.registry.ByConn(ev.ConnID); !ok {
		h.sendError(ev.Sender, types.CodeUnauthenticated, "authenticate first")
		return
	}

	var p sessionRefPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		h.sendError(ev.Sender, types.CodeInvalidArgument, "malformed end-advice-session payload")
		return
	}

	sess, err := h.sessions.End(p.SessionID, ev.ConnID)
	if err != nil {
		h.sendSessionError(ev.Sender, err)
		return
	}
	slog.Info("advice session ended", "session", sess.ID, "by", ev.ConnID)

	// Both sides are told and both are prompted for feedback, regardless of
	// who asked for the end.
	for _, part := range []types.Participant{sess.A, sess.B} {
		h.sendToConn(part.ConnID, types.EventSessionEnded, sessionRefData{SessionID: sess.ID})
		h.sendToConn(part.ConnID, types.EventRequestFeedback, sessionRefData{SessionID: sess.ID})
	}
}

func (h *Hub) handleSubmitFeedback(ev Event) {
	client, ok := h.registry.ByConn(ev.ConnID)
	if !ok {
		h.sendError(ev.Sender, types.CodeUnauthenticated, "authenticate first")
		return
	}

	var p feedbackPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		h.sendError(ev.Sender, types.CodeInvalidArgument, "malformed submit-feedback payload")
		return
	}

	fb, err := h.sessions.SubmitFeedback(p.SessionID, client.Identity.UserID, p.Rating, p.Comment)
	if err != nil {
		h.sendSessionError(ev.Sender, err)
		return
	}
	h.send(ev.Sender, types.EventFeedbackSubmitted, sessionRefData{SessionID: p.SessionID})

	if h.archive != nil {
		sessionID := p.SessionID
		go func() {
			if err := h.archive.SaveFeedback(context.Background(), sessionID, fb); err != nil {
				slog.Warn("archiving feedback failed", "session", sessionID, "error", err)
			}
		}()
	}
}

// handleDisconnect runs the teardown cascade in order: advice queue, room
// memberships (with peer notifications), active sessions (partner
// notification, no feedback prompt), then the registry entry.
func (h *Hub) handleDisconnect(ev Event) {
	h.queue.DequeueAll(ev.ConnID)

	client, authenticated := h.registry.ByConn(ev.ConnID)
	for _, room := range h.rooms.RemoveAll(ev.ConnID) {
		if authenticated {
			h.notifyRoom(room, ev.ConnID, types.EventUserLeftRoom, roomMemberData{
				Room:     room,
				UserID:   client.Identity.UserID,
				Username: client.Identity.Username,
			})
		}
	}

	for _, sess := range h.sessions.EndAllFor(ev.ConnID) {
		if partner, ok := sess.PartnerOf(ev.ConnID); ok {
			h.sendToConn(partner.ConnID, types.EventPartnerDisconnected, sessionRefData{SessionID: sess.ID})
		}
	}

	h.registry.Remove(ev.ConnID)
	slog.Info("connection closed", "conn", ev.ConnID)
}

// handleSweep archives and evicts ended sessions older than the retention
// window. Active sessions and recent history stay in memory.
func (h *Hub) handleSweep() {
	evicted := h.sessions.SweepEnded(time.Now().Add(-h.retention))
	if len(evicted) == 0 {
		return
	}
	slog.Info("evicting ended sessions", "count", len(evicted))

	if h.archive == nil {
		return
	}
	go func() {
		for _, sess := range evicted {
			if err := h.archive.ArchiveSession(context.Background(), sess); err != nil {
				slog.Warn("archiving session failed", "session", sess.ID, "error", err)
			}
		}
	}()
}

// Stats returns a snapshot for the REST surface. Components are
// individually locked, so reads here do not block the event goroutine.
func (h *Hub) Stats() types.Stats {
	return types.Stats{
		Connections:    h.registry.Count(),
		QueueSizes:     h.queue.Sizes(),
		ActiveSessions: h.sessions.ActiveCount(),
		TotalSessions:  h.sessions.CreatedCount(),
		RoomOccupancy:  h.rooms.Occupancy(),
	}
}

// RoomOccupancy exposes room member counts for /api/rooms.
func (h *Hub) RoomOccupancy() map[string]int {
	return h.rooms.Occupancy()
}

func (h *Hub) send(s Sender, event string, data any) {
	if s == nil {
		return
	}
	if err := s.Send(event, data); err != nil {
		slog.Debug("outbound send failed", "event", event, "error", err)
	}
}

// sendToConn delivers to a connection by id, skipping silently when it has
// already gone away. Delivery is fire-and-forget: no acknowledgment, no
// retry.
func (h *Hub) sendToConn(connID, event string, data any) {
	client, ok := h.registry.ByConn(connID)
	if !ok {
		return
	}
	h.send(client.Sender, event, data)
}

// notifyRoom sends to every room member except the originator.
func (h *Hub) notifyRoom(room, exceptConnID, event string, data any) {
	for _, connID := range h.rooms.Members(room) {
		if connID != exceptConnID {
			h.sendToConn(connID, event, data)
		}
	}
}

func (h *Hub) sendError(s Sender, code, message string) {
	h.send(s, types.EventError, errorData{Code: code, Message: message})
}

// sendSessionError maps session store errors onto the wire taxonomy.
func (h *Hub) sendSessionError(s Sender, err error) {
	switch err {
	case session.ErrSessionNotFound:
		h.sendError(s, types.CodeNotFound, err.Error())
	case session.ErrSessionEnded:
		h.sendError(s, types.CodeAlreadyEnded, err.Error())
	case session.ErrNotParticipant:
		h.sendError(s, types.CodeUnauthorized, err.Error())
	case session.ErrInvalidRating:
		h.sendError(s, types.CodeInvalidArgument, err.Error())
	default:
		h.sendError(s, types.CodeInvalidArgument, err.Error())
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
