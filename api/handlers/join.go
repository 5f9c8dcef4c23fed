package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/api"
	"github.com/mockmate/mockmate-api/config"
	"github.com/mockmate/mockmate-api/meeting"
	"github.com/mockmate/mockmate-api/models"
)

// Join exported for testing purposes
type Join struct {
	Auth   *meeting.Authorizer
	Tokens meeting.TokenIssuer
}

// JoinSessionHandler gates entry to a live session. A granted caller gets a
// short-lived meeting token to attach to the signaling relay; a denied caller
// gets the denial reason.
func (j Join) JoinSessionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	sessionID := mux.Vars(r)["session_id"]

	var body struct {
		IdentityRef string `json:"identityRef"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	grant, err := j.Auth.Authorize(ctx, sessionID, body.IdentityRef)
	if err != nil {
		var denial *meeting.Denial
		if errors.As(err, &denial) {
			writeDenial(w, denial)
			return
		}
		config.ErrorStatus("failed to authorize join", http.StatusInternalServerError, w, err)
		return
	}

	// token lives as long as the late-join window does
	expiry := grant.Session.Details.EndTime.Add(meeting.JoinLateBuffer)
	token, err := j.Tokens.Issue(grant.MeetingID, grant.Role, body.IdentityRef, expiry)
	if err != nil {
		config.ErrorStatus("failed to issue meeting token", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("join granted",
		"sessionID", sessionID,
		"role", grant.Role,
	)

	b, err := json.Marshal(models.JoinResponse{
		Granted:      true,
		Role:         grant.Role,
		MeetingID:    grant.MeetingID,
		MeetingToken: token,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func writeDenial(w http.ResponseWriter, denial *meeting.Denial) {
	status := http.StatusForbidden
	switch denial.Reason {
	case meeting.ReasonNotFound:
		status = http.StatusNotFound
	case meeting.ReasonEnded:
		status = http.StatusGone
	}

	b, _ := json.Marshal(models.JoinResponse{
		Granted: false,
		Reason:  denial.Reason,
	})
	w.WriteHeader(status)
	w.Write(b)
}
