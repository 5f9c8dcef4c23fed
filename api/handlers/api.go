package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/api"
	"github.com/mockmate/mockmate-api/config"
	"github.com/mockmate/mockmate-api/databases"
	"github.com/mockmate/mockmate-api/meeting"
	"github.com/mockmate/mockmate-api/models"
	"github.com/mockmate/mockmate-api/signal"
)

// App stores the router, config and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Relay    *signal.Relay
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	sessionsDB := databases.NewSessionDatabase(a.dbHelper)
	usersDB := databases.NewUserDatabase(a.dbHelper)
	meetingsDB := databases.NewMeetingDatabase(a.dbHelper)
	reviewsDB := databases.NewReviewDatabase(a.dbHelper)

	authorizer := &meeting.Authorizer{
		Sessions: sessionsDB,
		Users:    usersDB,
		Meetings: meetingsDB,
	}
	issuer := meeting.TokenIssuer{Secret: []byte(a.Config.MeetingTokenSecret)}
	a.Relay = signal.NewRelay(authorizer, meetingsDB)

	u := User{DB: usersDB}
	s := Session{DB: sessionsDB, UDB: usersDB, Config: a.Config}
	rev := Review{DB: reviewsDB, SDB: sessionsDB}
	j := Join{Auth: authorizer, Tokens: issuer}
	sig := Signaling{Relay: a.Relay, Tokens: issuer}
	uploads := Upload{}

	r := mux.NewRouter()

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// websocket attach carries its own meeting token, minted by join
	r.Handle("/ws/meeting/{meeting_id}", http.HandlerFunc(sig.MeetingSocketHandler)).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")

	apiCreate.Handle("/sessions", api.Middleware(http.HandlerFunc(s.CreateSessionHandler))).Methods("POST")
	apiCreate.Handle("/sessions", api.Middleware(http.HandlerFunc(s.SessionsByParticipantHandler))).Methods("GET")
	apiCreate.Handle("/sessions/{session_id}", api.Middleware(http.HandlerFunc(s.SessionByIDHandler))).Methods("GET")
	apiCreate.Handle("/sessions/{session_id}/status", api.Middleware(http.HandlerFunc(s.UpdateSessionStatusHandler))).Methods("PUT")
	apiCreate.Handle("/sessions/{session_id}/checkout", api.Middleware(http.HandlerFunc(s.CreateCheckoutSessionHandler))).Methods("POST")
	apiCreate.Handle("/sessions/{session_id}/join", api.Middleware(http.HandlerFunc(j.JoinSessionHandler))).Methods("POST")

	// rest fallback for ending a call, authorized by the meeting token
	apiCreate.Handle("/meetings/{meeting_id}/end", http.HandlerFunc(sig.EndMeetingHandler)).Methods("POST")

	apiCreate.Handle("/reviews", api.Middleware(http.HandlerFunc(rev.CreateReviewHandler))).Methods("POST")
	apiCreate.Handle("/reviews/session/{session_id}", api.Middleware(http.HandlerFunc(rev.ReviewsBySessionIDHandler))).Methods("GET")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(uploads.GenerateSignature))).Methods("POST")

	// swagger docs hosted at "/"
	r.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir("./docs/"))))
	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("mockmate-api has connected to the database")

	// initialize stripe; checkout routes return an error when the key is absent
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		zap.S().Warn("STRIPE_SECRET_KEY is not set, checkout is disabled")
	}
	stripe.Key = stripeKey

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// DB exposes the database helper so main can hand it to the scheduler
func (a *App) DB() databases.DatabaseHelper {
	return a.dbHelper
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
