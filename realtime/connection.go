// Package realtime is the websocket transport. It authenticates
// connections, frames events as JSON envelopes and dispatches inbound
// payloads into the chat service.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatwire/contract"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one websocket and serializes outbound writes through
// a buffered channel, so any number of handler goroutines can deliver
// events concurrently. It is the EventSink registered for the session.
type Connection struct {
	ID     string
	UserID string

	ws           *websocket.Conn
	send         chan []byte
	done         chan struct{}
	once         sync.Once
	log          *slog.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
}

func NewConnection(log *slog.Logger, userID string, ws *websocket.Conn,
	bufferSize int, writeTimeout, pingInterval time.Duration) *Connection {
	return &Connection{
		ID:           uuid.NewString(),
		UserID:       userID,
		ws:           ws,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		log:          log,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// Start launches the write loop. Call exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Consume enqueues one event for delivery. A full buffer means the
// client stopped reading; the connection is closed instead of letting
// backpressure reach the handlers.
func (c *Connection) Consume(ctx context.Context, e contract.OutboundEvent) error {
	data, err := encodeEnvelope(e)
	if err != nil {
		return err
	}

	// Checked first: a buffered send could otherwise still win the
	// select below on a connection that is already closed.
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("connection closed")
	case c.send <- data:
		return nil
	default:
		c.Close()
		return fmt.Errorf("send buffer exceeded for session %s", c.ID)
	}
}

// Close terminates the connection and stops the write loop. Safe to
// call from any goroutine, any number of times.
func (c *Connection) Close() {
	c.once.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.writeTimeout)
		_ = c.ws.SetWriteDeadline(deadline)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.log.Debug("write failed, dropping connection", "session", c.ID, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

func encodeEnvelope(e contract.OutboundEvent) ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(contract.Envelope{Event: e.Name, Data: payload})
}
