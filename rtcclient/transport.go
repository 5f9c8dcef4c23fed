package rtcclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mockmate/mockmate-api/models"
)

// ErrUnauthorized means the relay refused the attach: the token or identity
// failed re-validation, or the meeting has already ended. Clients navigate
// away instead of retrying.
var ErrUnauthorized = errors.New("relay refused attach")

// WSTransport is the websocket signaling transport to the relay.
type WSTransport struct {
	conn   *websocket.Conn
	events chan models.SignalMessage
	done   chan struct{}

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// Dial attaches to the relay for meetingID using the meeting token minted by
// the join endpoint. baseURL is the API origin, e.g. "https://api.mockmate.io".
func Dial(ctx context.Context, baseURL, meetingID, token string) (*WSTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/meeting/" + meetingID
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	t := &WSTransport{
		conn:   conn,
		events: make(chan models.SignalMessage, 16),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *WSTransport) readLoop() {
	defer close(t.events)
	for {
		var msg models.SignalMessage
		if err := t.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				t.mu.Lock()
				t.closeErr = ErrUnauthorized
				t.mu.Unlock()
			}
			return
		}
		select {
		case t.events <- msg:
		case <-t.done:
			return
		}
	}
}

// Events returns the stream of signaling frames from the relay. The channel
// closes when the connection drops.
func (t *WSTransport) Events() <-chan models.SignalMessage {
	return t.events
}

// Err reports why the event stream closed. ErrUnauthorized when the relay
// refused the attach after the upgrade; nil for ordinary disconnects.
func (t *WSTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeErr
}

// Send writes one signaling frame to the relay.
func (t *WSTransport) Send(msg models.SignalMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("transport closed")
	}
	return t.conn.WriteJSON(msg)
}

// Close shuts the transport down. Safe to call more than once.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	return t.conn.Close()
}
