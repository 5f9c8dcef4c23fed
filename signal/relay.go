package signal

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/meeting"
	"github.com/mockmate/mockmate-api/models"
)

// ErrUnauthorized rejects an attach that failed re-validation or targets an
// ended meeting. Distinct from transport errors so clients navigate away
// instead of retrying.
var ErrUnauthorized = errors.New("unauthorized attach")

// Authorizer re-validates every attach attempt with the same check the join
// endpoint runs; the transport layer's claims are never trusted blindly.
type Authorizer interface {
	Authorize(ctx context.Context, sessionID, identityRef string) (*meeting.Grant, error)
}

// Registry is the durable meeting record the relay consults for the terminal
// ended flag and updates when a host ends a meeting.
type Registry interface {
	FindByID(ctx context.Context, meetingID string) (*models.Meeting, error)
	MarkEnded(ctx context.Context, meetingID string) error
}

// Relay is the per-meeting rendezvous point: it tracks which of the two
// roles are attached to each room, emits readiness and departure events and
// forwards signaling frames between the occupants. Rooms are created on first
// attach and dropped once both sides leave; the registry row keeps the
// meeting's existence durable across that churn. Ended rooms are never
// dropped, so a late attach always hits the ended check.
type Relay struct {
	auth     Authorizer
	meetings Registry

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	mu        sync.Mutex
	meetingID string
	occupants map[models.Role]*Peer
	ended     bool
}

// Peer is one attached occupant of a room.
type Peer struct {
	Role models.Role

	room    *room
	conn    Conn
	evicted bool
}

// NewRelay constructs a relay over the given authorizer and meeting registry.
func NewRelay(auth Authorizer, meetings Registry) *Relay {
	return &Relay{
		auth:     auth,
		meetings: meetings,
		rooms:    make(map[string]*room),
	}
}

// Attach admits conn as the given role of meetingID after re-running the
// join authorization for identityRef. A second attach under an occupied role
// silently evicts the previous handle. Returns ErrUnauthorized on identity or
// role mismatch and on meetings already ended.
func (r *Relay) Attach(ctx context.Context, meetingID string, role models.Role, identityRef string, conn Conn) (*Peer, error) {
	if !role.Valid() || identityRef == "" || conn == nil {
		return nil, ErrUnauthorized
	}

	grant, err := r.auth.Authorize(ctx, meetingID, identityRef)
	var denial *meeting.Denial
	if errors.As(err, &denial) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if grant.Role != role {
		return nil, ErrUnauthorized
	}

	m, err := r.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Details.LifecycleStatus == models.MeetingEnded {
		return nil, ErrUnauthorized
	}

	rm := r.roomFor(meetingID)

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.ended {
		return nil, ErrUnauthorized
	}

	if prev, ok := rm.occupants[role]; ok {
		// silent eviction: the replaced handle gets no departure event
		prev.evicted = true
		_ = prev.conn.Close()
	}

	peer := &Peer{Role: role, room: rm, conn: conn}
	rm.occupants[role] = peer

	zap.S().Infow("peer attached", "meetingID", meetingID, "role", role)

	if len(rm.occupants) == 2 {
		ready := models.SignalMessage{Type: models.SignalReady, MeetingID: meetingID}
		for _, p := range rm.occupants {
			if err := p.conn.WriteMessage(ready); err != nil {
				zap.S().Warnw("ready delivery failed", "meetingID", meetingID, "role", p.Role, "error", err)
			}
		}
	}

	return peer, nil
}

// HandleMessage processes one inbound frame from an attached peer. Offers,
// answers and candidates are forwarded verbatim to the other role only, and
// dropped when the other side is not attached; the sender waits for the next
// ready event instead. An end frame from the expert terminates the meeting.
// Frames from evicted peers or for ended rooms are silently ignored.
func (r *Relay) HandleMessage(ctx context.Context, p *Peer, msg models.SignalMessage) {
	switch msg.Type {
	case models.SignalOffer, models.SignalAnswer, models.SignalCandidate:
		p.room.forward(p, msg)
	case models.SignalEnd:
		if p.Role != models.RoleExpert {
			zap.S().Warnw("end refused for non-host", "meetingID", p.room.meetingID, "role", p.Role)
			return
		}
		if err := r.End(ctx, p.room.meetingID, models.RoleExpert); err != nil {
			zap.S().Errorw("end meeting failed", "meetingID", p.room.meetingID, "error", err)
		}
	default:
		// stale or unknown frame, almost always from a connection mid-teardown
	}
}

// Detach removes p from its room on ordinary disconnect and notifies the
// remaining occupant with peerLeft. Evicted peers detach without any
// broadcast. The room itself is dropped once empty; a later attach inside the
// session window recreates it.
func (r *Relay) Detach(p *Peer) {
	rm := p.room

	rm.mu.Lock()
	if p.evicted || rm.ended || rm.occupants[p.Role] != p {
		rm.mu.Unlock()
		return
	}
	delete(rm.occupants, p.Role)
	empty := len(rm.occupants) == 0
	left := models.SignalMessage{Type: models.SignalPeerLeft, MeetingID: rm.meetingID, Peer: p.Role}
	for _, other := range rm.occupants {
		if err := other.conn.WriteMessage(left); err != nil {
			zap.S().Warnw("peerLeft delivery failed", "meetingID", rm.meetingID, "error", err)
		}
	}
	rm.mu.Unlock()

	zap.S().Infow("peer detached", "meetingID", rm.meetingID, "role", p.Role)

	if empty {
		r.dropRoom(rm)
	}
}

// End terminates the meeting: broadcasts meetingEnded to every attached
// occupant, closes their connections, marks the registry row ended and
// refuses all further attaches. Host only. The room stays resident as an
// ended marker; an attach whose registry read raced with the teardown must
// land on it and be refused, never on a fresh live room.
func (r *Relay) End(ctx context.Context, meetingID string, by models.Role) error {
	if by != models.RoleExpert {
		return ErrUnauthorized
	}

	r.mu.Lock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		rm = &room{meetingID: meetingID, occupants: make(map[models.Role]*Peer)}
		r.rooms[meetingID] = rm
	}
	r.mu.Unlock()

	rm.mu.Lock()
	rm.ended = true
	ended := models.SignalMessage{Type: models.SignalMeetingEnded, MeetingID: meetingID}
	for _, p := range rm.occupants {
		_ = p.conn.WriteMessage(ended)
		_ = p.conn.Close()
	}
	rm.occupants = make(map[models.Role]*Peer)
	rm.mu.Unlock()

	zap.S().Infow("meeting ended", "meetingID", meetingID)
	return r.meetings.MarkEnded(ctx, meetingID)
}

func (r *Relay) roomFor(meetingID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		rm = &room{meetingID: meetingID, occupants: make(map[models.Role]*Peer)}
		r.rooms[meetingID] = rm
	}
	return rm
}

func (r *Relay) dropRoom(rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if !rm.ended && len(rm.occupants) == 0 && r.rooms[rm.meetingID] == rm {
		delete(r.rooms, rm.meetingID)
	}
}

// forward relays msg to the other occupant if attached, stamping the sender's
// role. Messages sent into a half-open room are dropped, not queued: a fresh
// ready event triggers a new negotiation episode instead.
func (rm *room) forward(from *Peer, msg models.SignalMessage) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.ended || from.evicted || rm.occupants[from.Role] != from {
		return
	}
	if msg.MeetingID != rm.meetingID {
		return
	}
	other, ok := rm.occupants[from.Role.Other()]
	if !ok {
		zap.S().Debugw("dropping signal for absent peer", "meetingID", rm.meetingID, "type", msg.Type)
		return
	}
	msg.From = from.Role
	if err := other.conn.WriteMessage(msg); err != nil {
		zap.S().Warnw("signal delivery failed", "meetingID", rm.meetingID, "type", msg.Type, "error", err)
	}
}
