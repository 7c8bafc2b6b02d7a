package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsPair dials a throwaway server and returns both ends of a live
// websocket.
func wsPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	serverCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverCh <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-serverCh:
	case <-time.After(time.Second):
		t.Fatal("server side never arrived")
	}
	return server, client
}

func TestSendDeliversEnvelope(t *testing.T) {
	serverConn, clientConn := wsPair(t)
	conn := NewConnection("conn-1", serverConn, 10, time.Second)
	defer conn.Close()

	if err := conn.Send("authenticated", map[string]string{"userId": "u1"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	_ = clientConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}

	var env struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Event != "authenticated" || env.Data["userId"] != "u1" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestSendOmitsEmptyData(t *testing.T) {
	serverConn, clientConn := wsPair(t)
	conn := NewConnection("conn-1", serverConn, 10, time.Second)
	defer conn.Close()

	if err := conn.Send("queue-left", nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	_ = clientConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if strings.Contains(string(data), `"data"`) {
		t.Errorf("nil data should be omitted from the wire, got %s", data)
	}
}

func TestSendUnmarshalableData(t *testing.T) {
	serverConn, _ := wsPair(t)
	conn := NewConnection("conn-1", serverConn, 10, time.Second)
	defer conn.Close()

	if err := conn.Send("error", map[string]any{"fn": func() {}}); err != ErrInvalidJSON {
		t.Errorf("expected ErrInvalidJSON, got %v", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	serverConn, _ := wsPair(t)
	conn := NewConnection("conn-1", serverConn, 10, time.Second)

	if err := conn.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := conn.Send("authenticated", nil); err != ErrConnectionClosed {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	serverConn, _ := wsPair(t)
	conn := NewConnection("conn-1", serverConn, 10, time.Second)

	if err := conn.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	// Second close must not panic or re-close the socket.
	_ = conn.Close()
}

func TestConnectionID(t *testing.T) {
	serverConn, _ := wsPair(t)
	conn := NewConnection("conn-42", serverConn, 10, time.Second)
	defer conn.Close()

	if conn.ID() != "conn-42" {
		t.Errorf("expected conn-42, got %q", conn.ID())
	}
}
