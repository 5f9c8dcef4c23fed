package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/api"
	"github.com/mockmate/mockmate-api/config"
	"github.com/mockmate/mockmate-api/databases"
	"github.com/mockmate/mockmate-api/models"
	templates "github.com/mockmate/mockmate-api/templates/html"
)

// Session exported for testing purposes
type Session struct {
	DB     databases.SessionDatabase
	UDB    databases.UserDatabase
	Config config.Config
}

// CreateSessionHandler books a new mock-interview session
func (s Session) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var details models.SessionDetails
	err := json.NewDecoder(r.Body).Decode(&details)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	if details.ExpertRef == "" || details.CandidateRef == "" {
		config.ErrorStatus("expertRef and candidateRef are required", http.StatusBadRequest, w, fmt.Errorf("missing participant reference"))
		return
	}
	if !details.EndTime.After(details.StartTime) {
		config.ErrorStatus("startTime must be before endTime", http.StatusBadRequest, w, fmt.Errorf("inverted session window"))
		return
	}

	now := time.Now().UTC()
	details.Status = models.SessionPending
	details.CreatedAt = now
	details.UpdatedAt = now

	session := models.Session{
		ID:      uuid.New().String(),
		Details: details,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	_, err = s.DB.InsertOne(ctx, session)
	if err != nil {
		config.ErrorStatus("failed to insert session", http.StatusInternalServerError, w, err)
		return
	}

	go s.sendBookingConfirmation(session)

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// SessionByIDHandler returns a session given a sessionID
func (s Session) SessionByIDHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	zap.S().Debugf("session_id: %v", sessionID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := s.DB.FindByID(ctx, sessionID)
	if err != nil {
		config.ErrorStatus("failed to get session by ID", http.StatusInternalServerError, w, err)
		return
	}
	if dbResp == nil {
		config.ErrorStatus("session not found", http.StatusNotFound, w, fmt.Errorf("no session with id %s", sessionID))
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// SessionsByParticipantHandler lists sessions where the given participant
// reference appears as either the expert or the candidate
func (s Session) SessionsByParticipantHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	participant := r.URL.Query().Get("participant")
	if participant == "" {
		config.ErrorStatus("query param participant is required", http.StatusBadRequest, w, fmt.Errorf("query param participant is required"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := s.DB.Find(ctx, bson.M{"$or": []bson.M{
		{"session.expertRef": participant},
		{"session.candidateRef": participant},
	}})
	if err != nil {
		config.ErrorStatus("failed to get sessions by participant", http.StatusInternalServerError, w, err)
		return
	}

	// if no sessions exist, return an empty array instead of null
	if dbResp == nil {
		dbResp = []models.Session{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateSessionStatusHandler moves a session to a new status
func (s Session) UpdateSessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	sessionID := mux.Vars(r)["session_id"]

	var body struct {
		Status string `json:"status"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	switch body.Status {
	case models.SessionPending, models.SessionConfirmed, models.SessionCompleted, models.SessionCancelled:
	default:
		config.ErrorStatus("unknown session status", http.StatusBadRequest, w, fmt.Errorf("status %q", body.Status))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	existing, err := s.DB.FindByID(ctx, sessionID)
	if err != nil {
		config.ErrorStatus("failed to get session by ID", http.StatusInternalServerError, w, err)
		return
	}
	if existing == nil {
		config.ErrorStatus("session not found", http.StatusNotFound, w, fmt.Errorf("no session with id %s", sessionID))
		return
	}

	err = s.DB.UpdateStatus(ctx, sessionID, body.Status)
	if err != nil {
		config.ErrorStatus("failed to update session status", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"_id": "%s", "status": "%s"}`, sessionID, body.Status)))
}

// CreateCheckoutSessionHandler creates a stripe checkout session for a booking
func (s Session) CreateCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	sessionID := mux.Vars(r)["session_id"]

	if stripe.Key == "" {
		config.ErrorStatus("checkout is disabled", http.StatusServiceUnavailable, w, fmt.Errorf("stripe secret key is not set"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	booking, err := s.DB.FindByID(ctx, sessionID)
	if err != nil {
		config.ErrorStatus("failed to get session by ID", http.StatusInternalServerError, w, err)
		return
	}
	if booking == nil {
		config.ErrorStatus("session not found", http.StatusNotFound, w, fmt.Errorf("no session with id %s", sessionID))
		return
	}
	if booking.Details.PriceCents <= 0 {
		config.ErrorStatus("session is free", http.StatusBadRequest, w, fmt.Errorf("nothing to charge"))
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Mock interview: " + booking.Details.Topic),
					},
					UnitAmount: stripe.Int64(booking.Details.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(booking.ID),
		SuccessURL:        stripe.String(s.Config.BaseURL + "/api/v1/sessions/" + booking.ID),
		CancelURL:         stripe.String(s.Config.BaseURL + "/api/v1/sessions/" + booking.ID),
	}

	checkout, err := checkoutsession.New(params)
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"checkoutUrl": "%s"}`, checkout.URL)))
}

// sendBookingConfirmation emails both participants after a successful booking.
// Failures are logged only, booking is already durable.
func (s Session) sendBookingConfirmation(session models.Session) {
	if os.Getenv("SENDGRID_API_KEY") == "" {
		return
	}

	for _, ref := range []string{session.Details.ExpertRef, session.Details.CandidateRef} {
		email, name := s.participantEmail(ref)
		if email == "" {
			continue
		}

		subject := "Your mock interview is booked"
		startAt := session.Details.StartTime.Format(time.RFC1123)
		plain := fmt.Sprintf("Your session %q is scheduled for %s.", session.Details.Topic, startAt)
		html := templates.RenderBookingConfirmationEmail(session.Details.Topic, startAt)

		from := mail.NewEmail("MockMate", "no-reply@mockmate.dev")
		to := mail.NewEmail(name, email)
		message := mail.NewSingleEmail(from, subject, to, plain, html)
		client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
		response, err := client.Send(message)
		if err != nil {
			zap.S().Errorw("failed to send booking confirmation", "email", email, "error", err)
			continue
		}
		if response.StatusCode >= 400 {
			zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		}
	}
}

// participantEmail resolves a participant reference (user id or email) to a
// deliverable address and display name
func (s Session) participantEmail(ref string) (email, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), api.QueryTimeout)
	defer cancel()

	var filter bson.M
	if strings.Contains(ref, "@") {
		filter = bson.M{"user.email": strings.ToLower(ref)}
	} else {
		filter = bson.M{"_id": ref}
	}

	user, err := s.UDB.FindOne(ctx, filter)
	if err != nil || user == nil {
		if strings.Contains(ref, "@") {
			// unregistered invitees can still receive mail at the raw ref
			return ref, ref
		}
		return "", ""
	}
	return user.Details.Email, user.Details.Name
}
