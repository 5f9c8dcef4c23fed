package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/mockmate/mockmate-api/api/handlers"
	"github.com/mockmate/mockmate-api/meeting"
	"github.com/mockmate/mockmate-api/models"
	"github.com/mockmate/mockmate-api/signal"
)

type grantAuthorizer struct {
	roles map[string]models.Role
}

func (g grantAuthorizer) Authorize(ctx context.Context, sessionID, identityRef string) (*meeting.Grant, error) {
	role, ok := g.roles[identityRef]
	if !ok {
		return nil, meeting.ErrForbidden
	}
	return &meeting.Grant{Role: role, MeetingID: sessionID}, nil
}

type memRegistry struct {
	mu    sync.Mutex
	ended map[string]bool
}

func newMemRegistry() *memRegistry {
	return &memRegistry{ended: make(map[string]bool)}
}

func (m *memRegistry) FindByID(ctx context.Context, meetingID string) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := models.MeetingOpen
	if m.ended[meetingID] {
		status = models.MeetingEnded
	}
	return &models.Meeting{ID: meetingID, Details: models.MeetingDetails{LifecycleStatus: status}}, nil
}

func (m *memRegistry) MarkEnded(ctx context.Context, meetingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended[meetingID] = true
	return nil
}

func newSignalingHandler(reg *memRegistry) handlers.Signaling {
	auth := grantAuthorizer{roles: map[string]models.Role{
		"exp-1":  models.RoleExpert,
		"cand-1": models.RoleCandidate,
	}}
	return handlers.Signaling{
		Relay:  signal.NewRelay(auth, reg),
		Tokens: meeting.TokenIssuer{Secret: []byte("test-secret")},
	}
}

func issueToken(t *testing.T, s handlers.Signaling, meetingID string, role models.Role, identity string) string {
	t.Helper()
	token, err := s.Tokens.Issue(meetingID, role, identity, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestSignaling_MeetingSocketHandlerReadyWhenBothAttach(t *testing.T) {
	s := newSignalingHandler(newMemRegistry())

	r := mux.NewRouter()
	r.HandleFunc("/ws/meeting/{meeting_id}", s.MeetingSocketHandler)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/meeting/m1?token="

	expertToken := issueToken(t, s, "m1", models.RoleExpert, "exp-1")
	expert, _, err := websocket.DefaultDialer.Dial(wsURL+expertToken, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer expert.Close()

	candToken := issueToken(t, s, "m1", models.RoleCandidate, "cand-1")
	cand, _, err := websocket.DefaultDialer.Dial(wsURL+candToken, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cand.Close()

	expert.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.SignalMessage
	assert.NoError(t, expert.ReadJSON(&msg))
	assert.Equal(t, models.SignalReady, msg.Type)

	cand.SetReadDeadline(time.Now().Add(2 * time.Second))
	assert.NoError(t, cand.ReadJSON(&msg))
	assert.Equal(t, models.SignalReady, msg.Type)
}

func TestSignaling_MeetingSocketHandlerForwardsOffer(t *testing.T) {
	s := newSignalingHandler(newMemRegistry())

	r := mux.NewRouter()
	r.HandleFunc("/ws/meeting/{meeting_id}", s.MeetingSocketHandler)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/meeting/m1?token="

	expert, _, err := websocket.DefaultDialer.Dial(wsURL+issueToken(t, s, "m1", models.RoleExpert, "exp-1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer expert.Close()

	cand, _, err := websocket.DefaultDialer.Dial(wsURL+issueToken(t, s, "m1", models.RoleCandidate, "cand-1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cand.Close()

	// drain the ready frames first
	var msg models.SignalMessage
	expert.SetReadDeadline(time.Now().Add(2 * time.Second))
	assert.NoError(t, expert.ReadJSON(&msg))
	cand.SetReadDeadline(time.Now().Add(2 * time.Second))
	assert.NoError(t, cand.ReadJSON(&msg))

	offer := models.SignalMessage{Type: models.SignalOffer, MeetingID: "m1", SDP: "v=0 fake-offer"}
	assert.NoError(t, expert.WriteJSON(offer))

	cand.SetReadDeadline(time.Now().Add(2 * time.Second))
	assert.NoError(t, cand.ReadJSON(&msg))
	assert.Equal(t, models.SignalOffer, msg.Type)
	assert.Equal(t, "v=0 fake-offer", msg.SDP)
	assert.Equal(t, models.RoleExpert, msg.From)
}

func TestSignaling_MeetingSocketHandlerEndedMeetingCloseCode(t *testing.T) {
	reg := newMemRegistry()
	reg.ended["m1"] = true
	s := newSignalingHandler(reg)

	r := mux.NewRouter()
	r.HandleFunc("/ws/meeting/{meeting_id}", s.MeetingSocketHandler)
	srv := httptest.NewServer(r)
	defer srv.Close()

	token := issueToken(t, s, "m1", models.RoleCandidate, "cand-1")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/meeting/m1?token=" + token

	// the upgrade succeeds; the refusal arrives as a policy violation close
	// frame, not a bare connection drop
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.SignalMessage
	err = conn.ReadJSON(&msg)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestSignaling_MeetingSocketHandlerBadToken(t *testing.T) {
	s := newSignalingHandler(newMemRegistry())

	r := mux.NewRouter()
	r.HandleFunc("/ws/meeting/{meeting_id}", s.MeetingSocketHandler)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/meeting/m1?token=garbage"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestSignaling_MeetingSocketHandlerTokenMeetingMismatch(t *testing.T) {
	s := newSignalingHandler(newMemRegistry())

	r := mux.NewRouter()
	r.HandleFunc("/ws/meeting/{meeting_id}", s.MeetingSocketHandler)
	srv := httptest.NewServer(r)
	defer srv.Close()

	// token minted for m2 used against m1
	token := issueToken(t, s, "m2", models.RoleExpert, "exp-1")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/meeting/m1?token=" + token

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestSignaling_EndMeetingHandlerMissingToken(t *testing.T) {
	s := newSignalingHandler(newMemRegistry())

	req, err := http.NewRequest("POST", "/api/v1/meetings/m1/end", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"meeting_id": "m1"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(s.EndMeetingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSignaling_EndMeetingHandlerCandidateForbidden(t *testing.T) {
	reg := newMemRegistry()
	s := newSignalingHandler(reg)

	req, err := http.NewRequest("POST", "/api/v1/meetings/m1/end", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"meeting_id": "m1"})
	req.Header.Set("Authorization", "Bearer "+issueToken(t, s, "m1", models.RoleCandidate, "cand-1"))

	rr := httptest.NewRecorder()
	http.HandlerFunc(s.EndMeetingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, reg.ended["m1"])
}

func TestSignaling_EndMeetingHandler(t *testing.T) {
	reg := newMemRegistry()
	s := newSignalingHandler(reg)

	req, err := http.NewRequest("POST", "/api/v1/meetings/m1/end", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"meeting_id": "m1"})
	req.Header.Set("Authorization", "Bearer "+issueToken(t, s, "m1", models.RoleExpert, "exp-1"))

	rr := httptest.NewRecorder()
	http.HandlerFunc(s.EndMeetingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, reg.ended["m1"])
}
