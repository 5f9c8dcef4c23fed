package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/api"
	"github.com/mockmate/mockmate-api/config"
	"github.com/mockmate/mockmate-api/meeting"
	"github.com/mockmate/mockmate-api/models"
	"github.com/mockmate/mockmate-api/signal"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Signaling exported for testing purposes
type Signaling struct {
	Relay  *signal.Relay
	Tokens meeting.TokenIssuer
}

// MeetingSocketHandler upgrades to a websocket and attaches the caller to the
// meeting's signaling room. The meeting token minted by join rides in the
// token query param; the relay re-authorizes the identity behind it on attach.
func (s Signaling) MeetingSocketHandler(w http.ResponseWriter, r *http.Request) {
	meetingID := mux.Vars(r)["meeting_id"]

	claims, err := s.Tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		config.ErrorStatus("invalid meeting token", http.StatusUnauthorized, w, err)
		return
	}
	if claims.Subject != meetingID {
		config.ErrorStatus("token is for a different meeting", http.StatusForbidden, w, fmt.Errorf("token subject mismatch"))
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "meetingID", meetingID, "error", err)
		return
	}

	conn := signal.NewWSConn(ws)
	peer, err := s.Relay.Attach(r.Context(), meetingID, claims.Role, claims.Identity, conn)
	if err != nil {
		zap.S().Warnw("attach refused", "meetingID", meetingID, "role", claims.Role, "error", err)
		// a refusal must look different from a network drop so the client
		// navigates away instead of retrying
		code, reason := websocket.CloseInternalServerErr, "attach failed"
		if errors.Is(err, signal.ErrUnauthorized) {
			code, reason = websocket.ClosePolicyViolation, "unauthorized"
		}
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	// reads happen here, writes go through the conn's pump
	for {
		var msg models.SignalMessage
		if err := ws.ReadJSON(&msg); err != nil {
			break
		}
		s.Relay.HandleMessage(context.Background(), peer, msg)
	}

	s.Relay.Detach(peer)
	_ = conn.Close()
}

// EndMeetingHandler is the REST path for ending a meeting, for clients whose
// socket already dropped. Authorized by the same meeting token; host only.
func (s Signaling) EndMeetingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	meetingID := mux.Vars(r)["meeting_id"]

	reqToken := r.Header.Get("Authorization")
	splitToken := strings.Split(reqToken, "Bearer ")
	if len(splitToken) != 2 {
		config.ErrorStatus("missing bearer token", http.StatusUnauthorized, w, fmt.Errorf("no meeting token"))
		return
	}

	claims, err := s.Tokens.Verify(splitToken[1])
	if err != nil {
		config.ErrorStatus("invalid meeting token", http.StatusUnauthorized, w, err)
		return
	}
	if claims.Subject != meetingID {
		config.ErrorStatus("token is for a different meeting", http.StatusForbidden, w, fmt.Errorf("token subject mismatch"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err = s.Relay.End(ctx, meetingID, claims.Role)
	if err != nil {
		if err == signal.ErrUnauthorized {
			config.ErrorStatus("only the expert may end the meeting", http.StatusForbidden, w, err)
			return
		}
		config.ErrorStatus("failed to end meeting", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"_id": "%s", "lifecycleStatus": "%s"}`, meetingID, models.MeetingEnded)))
}
