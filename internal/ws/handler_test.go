package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tanktalk/internal/config"
	"tanktalk/internal/hub"
	"tanktalk/internal/queue"
	"tanktalk/internal/registry"
	"tanktalk/internal/rooms"
	"tanktalk/internal/session"
	"tanktalk/pkg/types"
)

func testWSConfig() *config.WebSocketConfig {
	return &config.WebSocketConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: time.Second,
		BufferSize:   10,
	}
}

// dialHandler stands up a full hub + handler and returns a connected
// client.
func dialHandler(t *testing.T) (*websocket.Conn, *hub.Hub) {
	t.Helper()

	h := hub.New(registry.New(), rooms.New(), queue.New(), session.NewStore(), hub.Options{})
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("start hub: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop() })

	handler := NewHandler(h, testWSConfig())
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, h
}

type wireEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return env
}

func TestHandlerAuthenticateRoundTrip(t *testing.T) {
	client, _ := dialHandler(t)

	err := client.WriteJSON(map[string]any{
		"event": types.EventAuthenticate,
		"data":  map[string]string{"userId": "ann", "username": "Ann", "level": "Beginner"},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	env := readEvent(t, client)
	if env.Event != types.EventAuthenticated {
		t.Fatalf("expected authenticated, got %q", env.Event)
	}
	var d struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.UserID != "ann" || d.Username != "Ann" {
		t.Errorf("unexpected authenticated data %+v", d)
	}
}

func TestHandlerMalformedEnvelope(t *testing.T) {
	client, _ := dialHandler(t)

	if err := client.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	env := readEvent(t, client)
	if env.Event != types.EventError {
		t.Fatalf("expected error event, got %q", env.Event)
	}
	var d struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(env.Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.Code != types.CodeInvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT, got %q", d.Code)
	}
}

func TestHandlerMissingEventName(t *testing.T) {
	client, _ := dialHandler(t)

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if env := readEvent(t, client); env.Event != types.EventError {
		t.Errorf("expected error event, got %q", env.Event)
	}
}

func TestHandlerDisconnectTeardown(t *testing.T) {
	client, h := dialHandler(t)

	err := client.WriteJSON(map[string]any{
		"event": types.EventAuthenticate,
		"data":  map[string]string{"userId": "ann"},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	readEvent(t, client) // authenticated

	_ = client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Stats().Connections != 0 {
		if time.Now().After(deadline) {
			t.Fatal("registry entry was not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
