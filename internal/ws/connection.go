package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// envelope is the wire format for every outbound event.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Connection wraps a websocket with a single writer goroutine. Gorilla
// connections do not allow concurrent writes, so every Send goes through
// the write channel and one goroutine owns the socket's write side.
type Connection struct {
	id           string
	conn         *websocket.Conn
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection wraps conn and starts its writer goroutine.
func NewConnection(id string, conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           id,
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

// ID returns the transport-assigned connection id.
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues an event envelope for delivery. Fire-and-forget from the
// dispatcher's point of view: a slow client times out here instead of
// stalling event processing.
func (c *Connection) Send(event string, data any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- payload:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts down the writer goroutine and the underlying socket. Safe to
// call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}
