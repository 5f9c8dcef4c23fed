package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mockmate/mockmate-api/api/handlers"
	"github.com/mockmate/mockmate-api/databases"
	mocksdb "github.com/mockmate/mockmate-api/databases/mocks"
	"github.com/mockmate/mockmate-api/models"
)

func TestReview_CreateReviewHandlerBadRating(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}
	rv := handlers.Review{
		DB:  databases.NewReviewDatabase(db),
		SDB: databases.NewSessionDatabase(db),
	}

	req, err := http.NewRequest("POST", "/api/v1/reviews",
		strings.NewReader(`{"sessionID": "sess-1", "rating": 9}`))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(rv.CreateReviewHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReview_CreateReviewHandlerMarksSessionCompleted(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}

	sessionsConn := &mocksdb.CollectionHelper{}
	sessionResult := &mocksdb.SingleResultHelper{}
	sessionResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		s := args.Get(0).(*models.Session)
		*s = models.Session{ID: "sess-1", Details: models.SessionDetails{Status: models.SessionConfirmed}}
	})
	sessionsConn.On("FindOne", mock.Anything, mock.Anything).Return(sessionResult)

	var statusUpdate bson.M
	sessionsConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			statusUpdate = args.Get(2).(bson.M)
		})
	db.On("Collection", "sessions").Return(sessionsConn)

	reviewsConn := &mocksdb.CollectionHelper{}
	reviewsConn.On("InsertOne", mock.Anything, mock.Anything).Return("inserted-id", nil)
	db.On("Collection", "reviews").Return(reviewsConn)

	rv := handlers.Review{
		DB:  databases.NewReviewDatabase(db),
		SDB: databases.NewSessionDatabase(db),
	}

	req, err := http.NewRequest("POST", "/api/v1/reviews",
		strings.NewReader(`{"sessionID": "sess-1", "reviewerID": "cand-1", "rating": 5, "comments": "great"}`))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(rv.CreateReviewHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var created models.Review
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "sess-1", created.Details.SessionID)

	set := statusUpdate["$set"].(bson.M)
	assert.Equal(t, models.SessionCompleted, set["session.status"])
}

func TestReview_CreateReviewHandlerUnknownSession(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}

	sessionsConn := &mocksdb.CollectionHelper{}
	sessionResult := &mocksdb.SingleResultHelper{}
	sessionResult.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	sessionsConn.On("FindOne", mock.Anything, mock.Anything).Return(sessionResult)
	db.On("Collection", "sessions").Return(sessionsConn)

	rv := handlers.Review{
		DB:  databases.NewReviewDatabase(db),
		SDB: databases.NewSessionDatabase(db),
	}

	req, err := http.NewRequest("POST", "/api/v1/reviews",
		strings.NewReader(`{"sessionID": "nope", "rating": 4}`))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(rv.CreateReviewHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReview_ReviewsBySessionIDHandlerEmpty(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	cursor := &mocksdb.CursorHelper{}
	cursor.On("All", mock.Anything, mock.Anything).Return(nil)
	conn.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)
	db.On("Collection", "reviews").Return(conn)

	rv := handlers.Review{
		DB:  databases.NewReviewDatabase(db),
		SDB: databases.NewSessionDatabase(db),
	}

	req, err := http.NewRequest("GET", "/api/v1/reviews/session/sess-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"session_id": "sess-1"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(rv.ReviewsBySessionIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}
