package rtcclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/mockmate/mockmate-api/models"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSTransport_CloseUnblocksReadLoop(t *testing.T) {
	flooded := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		// more frames than the transport's event buffer holds
		for i := 0; i < 64; i++ {
			if err := ws.WriteJSON(models.SignalMessage{Type: models.SignalCandidate, MeetingID: "m1"}); err != nil {
				return
			}
		}
		close(flooded)
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr, err := Dial(context.Background(), srv.URL, "m1", "tok")
	if err != nil {
		t.Fatal(err)
	}

	<-flooded
	assert.NoError(t, tr.Close())

	// nothing reads the events; Close alone must let the stream terminate
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-tr.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event stream never closed")
		}
	}
}

func TestWSTransport_PolicyViolationSurfacesUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
			time.Now().Add(time.Second))
		ws.Close()
	}))
	defer srv.Close()

	tr, err := Dial(context.Background(), srv.URL, "m1", "tok")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	select {
	case _, ok := <-tr.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("event stream never closed")
	}
	assert.ErrorIs(t, tr.Err(), ErrUnauthorized)
}
