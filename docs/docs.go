// Package docs MockMate API.
//
// Documentation of the MockMate booking and live-session API.
//
//	Schemes: https
//	BasePath: /
//	Version: 1.0.0
//	Host: https://api.mockmate.dev
//
//	Consumes:
//	- application/json
//
//	Produces:
//	- application/json
//
//	Security:
//	- basic
//
//	SecurityDefinitions:
//	basic:
//	  type: basic
//
// swagger:meta
package docs

import (
	"github.com/mockmate/mockmate-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route POST /api/v1/sessions/{session_id}/join sessions joinSessionID
// Requests entry to a scheduled session's live meeting.
// responses:
//   200: joinResponse
//   403: joinResponse
//   404: joinResponse
//   410: joinResponse

// The join verdict. On a grant the meetingToken attaches the caller to the
// signaling relay; on a denial the reason explains why.
// swagger:response joinResponse
type joinResponseWrapper struct {
	// in:body
	Body models.JoinResponse
}
