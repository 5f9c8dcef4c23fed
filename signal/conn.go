package signal

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mockmate/mockmate-api/models"
)

// ErrBackpressure is returned when a peer's outbound buffer is full.
var ErrBackpressure = errors.New("backpressure")

// Conn is the transport handle the relay writes signaling frames to. The
// websocket implementation is below; tests substitute channel-backed fakes.
type Conn interface {
	WriteMessage(msg models.SignalMessage) error
	Close() error
}

// WSConn adapts a gorilla websocket connection to the relay's Conn with a
// buffered send channel drained by a single write pump, so relay broadcasts
// never block on a slow reader.
type WSConn struct {
	ws   *websocket.Conn
	send chan models.SignalMessage

	mu     sync.Mutex
	closed bool
}

// NewWSConn wraps ws and starts its write pump.
func NewWSConn(ws *websocket.Conn) *WSConn {
	c := &WSConn{
		ws:   ws,
		send: make(chan models.SignalMessage, 32),
	}
	go c.writePump()
	return c
}

func (c *WSConn) writePump() {
	for msg := range c.send {
		if err := c.ws.WriteJSON(msg); err != nil {
			return
		}
	}
	// channel closed: flush a close frame so browsers see a clean shutdown
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// WriteMessage queues msg for delivery. Messages are dropped with
// ErrBackpressure rather than blocking the relay.
func (c *WSConn) WriteMessage(msg models.SignalMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close shuts the write pump down and closes the underlying socket. Safe to
// call more than once.
func (c *WSConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	return c.ws.Close()
}
