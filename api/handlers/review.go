package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mockmate/mockmate-api/api"
	"github.com/mockmate/mockmate-api/config"
	"github.com/mockmate/mockmate-api/databases"
	"github.com/mockmate/mockmate-api/models"
)

// Review exported for testing purposes
type Review struct {
	DB  databases.ReviewDatabase
	SDB databases.SessionDatabase
}

// CreateReviewHandler records a review for a session and marks that session
// completed
func (rv Review) CreateReviewHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var details models.ReviewDetails
	err := json.NewDecoder(r.Body).Decode(&details)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	if details.SessionID == "" {
		config.ErrorStatus("sessionID is required", http.StatusBadRequest, w, fmt.Errorf("missing sessionID"))
		return
	}
	if details.Rating < 1 || details.Rating > 5 {
		config.ErrorStatus("rating must be between 1 and 5", http.StatusBadRequest, w, fmt.Errorf("rating %d", details.Rating))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := rv.SDB.FindByID(ctx, details.SessionID)
	if err != nil {
		config.ErrorStatus("failed to get session by ID", http.StatusInternalServerError, w, err)
		return
	}
	if session == nil {
		config.ErrorStatus("session not found", http.StatusNotFound, w, fmt.Errorf("no session with id %s", details.SessionID))
		return
	}

	details.CreatedAt = time.Now().UTC()
	review := models.Review{
		ID:      uuid.New().String(),
		Details: details,
	}

	_, err = rv.DB.InsertOne(ctx, review)
	if err != nil {
		config.ErrorStatus("failed to insert review", http.StatusInternalServerError, w, err)
		return
	}

	// a reviewed session is over; the status transition rides on the review
	err = rv.SDB.UpdateStatus(ctx, details.SessionID, models.SessionCompleted)
	if err != nil {
		config.ErrorStatus("failed to mark session completed", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(review)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ReviewsBySessionIDHandler lists the reviews recorded for a session
func (rv Review) ReviewsBySessionIDHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	sessionID := mux.Vars(r)["session_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := rv.DB.Find(ctx, bson.M{"review.sessionID": sessionID})
	if err != nil {
		config.ErrorStatus("failed to get reviews by session ID", http.StatusInternalServerError, w, err)
		return
	}

	if dbResp == nil {
		dbResp = []models.Review{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
