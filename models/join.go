package models

// JoinResponse is returned by the session join endpoint. On a grant the
// client uses MeetingToken to attach to the signaling relay; on a denial
// Reason carries one of NotFound, Forbidden, TooEarly or Ended.
type JoinResponse struct {
	Granted      bool   `json:"granted"`
	Role         Role   `json:"role,omitempty"`
	MeetingID    string `json:"meetingId,omitempty"`
	MeetingToken string `json:"meetingToken,omitempty"`
	Reason       string `json:"reason,omitempty"`
}
