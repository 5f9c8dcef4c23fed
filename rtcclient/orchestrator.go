package rtcclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/models"
)

// State is the orchestrator's per-participant lifecycle state.
type State string

const (
	StateConnecting        State = "connecting"
	StateWaitingForPartner State = "waitingForPartner"
	StateNegotiating       State = "negotiating"
	StateConnected         State = "connected"
	StatePartnerLeft       State = "partnerLeft"
	StateEnded             State = "ended"
	StateDenied            State = "denied"
)

var (
	// ErrDenied means no identity reference was supplied; the orchestrator
	// never attempts to attach.
	ErrDenied = errors.New("join denied")
	// ErrNegotiationFailed surfaces an offer/answer rejection from the
	// underlying connection. Not retried; the user must re-enter.
	ErrNegotiationFailed = errors.New("negotiation failed")
)

// Controller is the peer-connection surface the orchestrator drives.
// *PeerController implements it; tests substitute fakes.
type Controller interface {
	InitLocalMedia() error
	CreateOffer() (string, error)
	HandleOffer(sdp string) (string, error)
	HandleAnswer(sdp string) error
	HandleCandidate(cand models.ICECandidate) error
	Reset() error
	Close() error
}

// Transport is the signaling channel to the relay. Err explains a closed
// event stream; ErrUnauthorized means the relay refused the attach.
type Transport interface {
	Events() <-chan models.SignalMessage
	Send(msg models.SignalMessage) error
	Err() error
	Close() error
}

// Orchestrator drives the end-to-end meeting state machine for one
// participant: media acquisition, waiting for the partner, signaling
// exchange, partner-departure recovery and forced termination.
//
// Offer initiation is static: the expert always offers, the candidate only
// answers. Both sides offering at once is a known hard problem this design
// sidesteps by construction.
type Orchestrator struct {
	meetingID string
	role      models.Role
	identity  string
	peer      Controller
	transport Transport

	mu      sync.Mutex
	state   State
	offered bool
	onState func(State)
}

// NewOrchestrator wires a controller and transport for one participant.
// onState observes every state transition and may be nil.
func NewOrchestrator(meetingID string, role models.Role, identity string, peer Controller, transport Transport, onState func(State)) *Orchestrator {
	return &Orchestrator{
		meetingID: meetingID,
		role:      role,
		identity:  identity,
		peer:      peer,
		transport: transport,
		state:     StateConnecting,
		onState:   onState,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	cb := o.onState
	o.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Run executes the state machine until the meeting ends, the context is
// cancelled or the transport drops. Media acquisition runs concurrently with
// signaling and its failure degrades to audio/video-less participation
// rather than blocking negotiation.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.identity == "" {
		o.setState(StateDenied)
		return ErrDenied
	}

	go func() {
		if err := o.peer.InitLocalMedia(); err != nil {
			zap.S().Warnw("continuing without local media", "meetingID", o.meetingID, "error", err)
		}
	}()

	o.setState(StateWaitingForPartner)

	for {
		select {
		case <-ctx.Done():
			o.cleanup()
			o.setState(StateEnded)
			return ctx.Err()
		case msg, ok := <-o.transport.Events():
			if !ok {
				o.cleanup()
				if errors.Is(o.transport.Err(), ErrUnauthorized) {
					o.setState(StateDenied)
					return ErrUnauthorized
				}
				// transport dropped without an explicit end: hard stop
				o.setState(StateEnded)
				return nil
			}
			done, err := o.handle(msg)
			if err != nil {
				o.cleanup()
				o.setState(StateEnded)
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (o *Orchestrator) handle(msg models.SignalMessage) (done bool, err error) {
	switch msg.Type {
	case models.SignalReady:
		o.setState(StateNegotiating)
		if o.role != models.RoleExpert {
			return false, nil
		}
		o.mu.Lock()
		alreadyOffered := o.offered
		o.offered = true
		o.mu.Unlock()
		if alreadyOffered {
			// redelivered readiness event; the offer is one-shot per episode
			return false, nil
		}
		sdp, offerErr := o.peer.CreateOffer()
		if offerErr != nil {
			return false, fmt.Errorf("%w: %v", ErrNegotiationFailed, offerErr)
		}
		if sendErr := o.transport.Send(models.SignalMessage{
			Type: models.SignalOffer, MeetingID: o.meetingID, SDP: sdp,
		}); sendErr != nil {
			return false, sendErr
		}

	case models.SignalOffer:
		if o.role != models.RoleCandidate {
			return false, nil
		}
		answer, answerErr := o.peer.HandleOffer(msg.SDP)
		if answerErr != nil {
			return false, fmt.Errorf("%w: %v", ErrNegotiationFailed, answerErr)
		}
		if sendErr := o.transport.Send(models.SignalMessage{
			Type: models.SignalAnswer, MeetingID: o.meetingID, SDP: answer,
		}); sendErr != nil {
			return false, sendErr
		}
		o.setState(StateConnected)

	case models.SignalAnswer:
		if o.role != models.RoleExpert {
			return false, nil
		}
		if applyErr := o.peer.HandleAnswer(msg.SDP); applyErr != nil {
			return false, fmt.Errorf("%w: %v", ErrNegotiationFailed, applyErr)
		}
		o.setState(StateConnected)

	case models.SignalCandidate:
		if msg.Candidate == nil {
			return false, nil
		}
		if candErr := o.peer.HandleCandidate(*msg.Candidate); candErr != nil {
			zap.S().Warnw("remote candidate rejected", "meetingID", o.meetingID, "error", candErr)
		}

	case models.SignalPeerLeft:
		o.setState(StatePartnerLeft)
		if resetErr := o.peer.Reset(); resetErr != nil {
			return false, fmt.Errorf("%w: %v", ErrNegotiationFailed, resetErr)
		}
		o.mu.Lock()
		o.offered = false
		o.mu.Unlock()
		o.setState(StateWaitingForPartner)

	case models.SignalMeetingEnded:
		o.cleanup()
		o.setState(StateEnded)
		return true, nil
	}

	return false, nil
}

// SendCandidate forwards a locally discovered candidate to the relay. Wire
// this as the PeerController's onCandidate callback.
func (o *Orchestrator) SendCandidate(cand models.ICECandidate) {
	if err := o.transport.Send(models.SignalMessage{
		Type: models.SignalCandidate, MeetingID: o.meetingID, Candidate: &cand,
	}); err != nil {
		zap.S().Warnw("candidate send failed", "meetingID", o.meetingID, "error", err)
	}
}

// Leave exits the meeting voluntarily. The partner learns of the departure
// through the relay's peerLeft broadcast.
func (o *Orchestrator) Leave() {
	o.cleanup()
	o.setState(StateEnded)
}

// EndMeeting is the host-only hard stop: it instructs the relay to broadcast
// meetingEnded to the other side before cleaning up.
func (o *Orchestrator) EndMeeting() error {
	if o.role != models.RoleExpert {
		return ErrDenied
	}
	err := o.transport.Send(models.SignalMessage{Type: models.SignalEnd, MeetingID: o.meetingID})
	o.cleanup()
	o.setState(StateEnded)
	return err
}

func (o *Orchestrator) cleanup() {
	if err := o.peer.Close(); err != nil {
		zap.S().Debugw("peer close", "error", err)
	}
	if err := o.transport.Close(); err != nil {
		zap.S().Debugw("transport close", "error", err)
	}
}
