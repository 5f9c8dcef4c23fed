package meeting

import (
	"context"
	"strings"
	"time"

	"github.com/mockmate/mockmate-api/models"
)

// Join window buffers around the scheduled session. A participant may enter
// up to ten minutes before the scheduled start and up to thirty minutes after
// the scheduled end, boundaries inclusive.
const (
	JoinEarlyBuffer = 10 * time.Minute
	JoinLateBuffer  = 30 * time.Minute
)

// Denial reasons returned to callers of Authorize.
const (
	ReasonNotFound  = "NotFound"
	ReasonForbidden = "Forbidden"
	ReasonTooEarly  = "TooEarly"
	ReasonEnded     = "Ended"
)

// Denial is a terminal, user-visible authorization failure. It is never
// retried; callers surface the reason and navigate away.
type Denial struct {
	Reason string
}

func (d *Denial) Error() string {
	return "join denied: " + d.Reason
}

// Sentinel denials, comparable with errors.Is.
var (
	ErrNotFound  = &Denial{Reason: ReasonNotFound}
	ErrForbidden = &Denial{Reason: ReasonForbidden}
	ErrTooEarly  = &Denial{Reason: ReasonTooEarly}
	ErrEnded     = &Denial{Reason: ReasonEnded}
)

// SessionStore provides read access to scheduled session records.
// (nil, nil) means the session does not exist.
type SessionStore interface {
	FindByID(ctx context.Context, sessionID string) (*models.Session, error)
}

// IdentityResolver maps an identity reference, user id or email, to the
// canonical email for that identity. ("", nil) means unresolvable.
type IdentityResolver interface {
	ResolveCanonicalEmail(ctx context.Context, identityRef string) (string, error)
}

// Registry ensures the durable meeting row exists for a session.
type Registry interface {
	Ensure(ctx context.Context, meetingID string) (*models.Meeting, error)
}

// Grant is the result of a successful authorization.
type Grant struct {
	Role      models.Role
	MeetingID string
	Session   *models.Session
}

// Authorizer decides, at call time, whether a claimed identity may enter a
// scheduled session, and ensures the meeting room record exists on success.
type Authorizer struct {
	Sessions SessionStore
	Users    IdentityResolver
	Meetings Registry

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (a *Authorizer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Authorize checks sessionID exists, identityRef matches one of the two
// participants, and the current time falls inside the buffered window.
// Safe to call repeatedly; the only side effect is the idempotent meeting
// row upsert on a grant.
func (a *Authorizer) Authorize(ctx context.Context, sessionID, identityRef string) (*Grant, error) {
	if identityRef == "" {
		return nil, ErrForbidden
	}

	session, err := a.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotFound
	}

	role, ok, err := a.matchRole(ctx, &session.Details, identityRef)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	now := a.now()
	if now.Before(session.Details.StartTime.Add(-JoinEarlyBuffer)) {
		return nil, ErrTooEarly
	}
	if now.After(session.Details.EndTime.Add(JoinLateBuffer)) {
		return nil, ErrEnded
	}

	if _, err := a.Meetings.Ensure(ctx, sessionID); err != nil {
		return nil, err
	}

	return &Grant{Role: role, MeetingID: sessionID, Session: session}, nil
}

// matchRole resolves the claimed identity against the stored participant
// references. Direct equality is tried first; only when that fails are the
// canonical email forms fetched for the second pass. Session records may
// carry either a user id or an email in each slot, so the second pass
// resolves every reference into the canonical email space before comparing.
func (a *Authorizer) matchRole(ctx context.Context, details *models.SessionDetails, claimed string) (models.Role, bool, error) {
	if role, ok := matchDirect(details.ExpertRef, details.CandidateRef, claimed); ok {
		return role, true, nil
	}

	claimedCanonical, err := a.Users.ResolveCanonicalEmail(ctx, claimed)
	if err != nil {
		return "", false, err
	}
	if claimedCanonical == "" {
		return "", false, nil
	}

	expertCanonical, err := a.Users.ResolveCanonicalEmail(ctx, details.ExpertRef)
	if err != nil {
		return "", false, err
	}
	candidateCanonical, err := a.Users.ResolveCanonicalEmail(ctx, details.CandidateRef)
	if err != nil {
		return "", false, err
	}

	role, ok := matchCanonical(details.ExpertRef, details.CandidateRef,
		expertCanonical, candidateCanonical, claimedCanonical)
	return role, ok, nil
}

// matchDirect is the first pass: exact reference equality.
func matchDirect(expertRef, candidateRef, claimed string) (models.Role, bool) {
	switch claimed {
	case expertRef:
		return models.RoleExpert, true
	case candidateRef:
		return models.RoleCandidate, true
	}
	return "", false
}

// matchCanonical is the second pass: the claimed identity's canonical email
// compared case-insensitively against the stored references and their own
// canonical forms. Expert wins when both slots somehow reference the same
// identity.
func matchCanonical(expertRef, candidateRef, expertCanonical, candidateCanonical, claimedCanonical string) (models.Role, bool) {
	if strings.EqualFold(claimedCanonical, expertRef) ||
		(expertCanonical != "" && strings.EqualFold(claimedCanonical, expertCanonical)) {
		return models.RoleExpert, true
	}
	if strings.EqualFold(claimedCanonical, candidateRef) ||
		(candidateCanonical != "" && strings.EqualFold(claimedCanonical, candidateCanonical)) {
		return models.RoleCandidate, true
	}
	return "", false
}
