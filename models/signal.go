package models

// Role identifies one of the two fixed occupant slots of a meeting room.
type Role string

// The two meeting roles. The expert always initiates the offer; the candidate
// only ever answers.
const (
	RoleExpert    Role = "expert"
	RoleCandidate Role = "candidate"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleExpert || r == RoleCandidate
}

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleExpert {
		return RoleCandidate
	}
	return RoleExpert
}

// SignalType represents the type of signaling message relayed between the two
// occupants of a meeting room.
type SignalType string

const (
	SignalReady        SignalType = "ready"
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalCandidate    SignalType = "iceCandidate"
	SignalPeerLeft     SignalType = "peerLeft"
	SignalMeetingEnded SignalType = "meetingEnded"
	// SignalEnd is client-to-server only: the expert instructs the relay to
	// terminate the meeting for both sides.
	SignalEnd SignalType = "end"
)

// SignalMessage is a transient signaling frame scoped to exactly one meeting.
// It is never persisted.
type SignalMessage struct {
	Type      SignalType    `json:"type"`
	MeetingID string        `json:"meetingId"`
	From      Role          `json:"from,omitempty"`
	SDP       string        `json:"sdp,omitempty"`
	Candidate *ICECandidate `json:"candidate,omitempty"`
	// Peer carries the departed role on peerLeft messages.
	Peer Role `json:"peer,omitempty"`
}

// ICECandidate mirrors the browser's RTCIceCandidateInit shape so candidates
// relay verbatim between peers.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}
