package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tanktalk/internal/config"
	"tanktalk/internal/hub"
	"tanktalk/pkg/types"
)

// inboundEnvelope is the wire format for client events.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler upgrades HTTP requests and pumps decoded events into the hub.
// Connections get a fresh uuid per upgrade; identity arrives later via the
// authenticate event, never through the upgrade request.
type Handler struct {
	hub      *hub.Hub
	cfg      *config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler feeding h.
func NewHandler(h *hub.Hub, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		hub: h,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients are served from arbitrary origins in
				// development; tighten per deployment.
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and runs the read pump until the
// client goes away.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	conn := NewConnection(connID, raw, h.cfg.BufferSize, h.cfg.WriteTimeout)
	slog.Info("connection opened", "conn", connID, "remote", r.RemoteAddr)

	go h.readPump(conn)
}

// readPump reads client frames, decodes event envelopes and dispatches
// them. On exit, whether a clean close, error or timeout, it synthesizes
// the disconnect event that drives the teardown cascade.
func (h *Handler) readPump(conn *Connection) {
	defer func() {
		if err := h.hub.Dispatch(hub.Event{
			ConnID: conn.ID(),
			Sender: conn,
			Name:   types.EventDisconnect,
		}); err != nil {
			slog.Warn("disconnect dispatch failed", "conn", conn.ID(), "error", err)
		}
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "conn", conn.ID(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			_ = conn.Send(types.EventError, map[string]string{
				"code":    types.CodeInvalidArgument,
				"message": "malformed event envelope",
			})
			continue
		}

		if err := h.hub.Dispatch(hub.Event{
			ConnID: conn.ID(),
			Sender: conn,
			Name:   env.Event,
			Data:   env.Data,
		}); err != nil {
			slog.Warn("event dispatch failed", "conn", conn.ID(), "event", env.Event, "error", err)
			_ = conn.Send(types.EventError, map[string]string{
				"code":    types.CodeInvalidArgument,
				"message": "server busy, try again",
			})
		}
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-conn.ctx.Done():
			return
		}
	}
}
