package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/databases"
	"github.com/mockmate/mockmate-api/meeting"
	"github.com/mockmate/mockmate-api/models"
	templates "github.com/mockmate/mockmate-api/templates/html"
)

// Scheduler handles periodic background jobs: sweeping stale meetings that
// nobody ended explicitly, and reminder emails for upcoming sessions
type Scheduler struct {
	cron       *cron.Cron
	SDB        databases.SessionDatabase
	MDB        databases.MeetingDatabase
	UDB        databases.UserDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	sDB databases.SessionDatabase,
	mDB databases.MeetingDatabase,
	uDB databases.UserDatabase,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		SDB:        sDB,
		MDB:        mDB,
		UDB:        uDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Close out meetings whose late-join window has passed without an
	// explicit end, so the registry never reports them joinable
	_, err := s.cron.AddFunc("@every 5m", s.sweepStaleMeetings)
	if err != nil {
		zap.S().Errorw("failed to register stale meeting sweep", "error", err)
	}

	// Remind participants of sessions starting within the next hour
	_, err = s.cron.AddFunc("0 * * * *", s.sendUpcomingReminders)
	if err != nil {
		zap.S().Errorw("failed to register reminder job", "error", err)
	}

	s.cron.Start()
	zap.S().Infow("scheduler started", "instanceID", s.instanceID)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

// sweepStaleMeetings marks meetings ended once the session's late-join buffer
// has fully elapsed. Meetings ended through the relay are already terminal;
// this only catches rooms that everyone abandoned without an end.
func (s *Scheduler) sweepStaleMeetings() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-meeting.JoinLateBuffer)

	// bounded lookback so the sweep stays cheap on a long-lived collection
	sessions, err := s.SDB.Find(ctx, bson.M{
		"session.endTime": bson.M{
			"$lt":  cutoff,
			"$gte": cutoff.Add(-24 * time.Hour),
		},
	})
	if err != nil {
		zap.S().Errorw("stale meeting sweep query failed", "error", err)
		return
	}

	swept := 0
	for _, sess := range sessions {
		m, err := s.MDB.FindByID(ctx, sess.ID)
		if err != nil {
			zap.S().Errorw("failed to load meeting during sweep", "meetingID", sess.ID, "error", err)
			continue
		}
		if m == nil || m.Details.LifecycleStatus != models.MeetingOpen {
			continue
		}
		if err := s.MDB.MarkEnded(ctx, sess.ID); err != nil {
			zap.S().Errorw("failed to mark meeting ended", "meetingID", sess.ID, "error", err)
			continue
		}
		swept++
	}

	if swept > 0 {
		zap.S().Infow("swept stale meetings", "count", swept)
	}
}

// sendUpcomingReminders emails both participants of sessions starting within
// the next hour, once per session.
func (s *Scheduler) sendUpcomingReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	sessions, err := s.SDB.Find(ctx, bson.M{
		"session.startTime": bson.M{
			"$gte": now,
			"$lt":  now.Add(time.Hour),
		},
		"session.status":         bson.M{"$in": []string{models.SessionPending, models.SessionConfirmed}},
		"session.reminderSentAt": bson.M{"$exists": false},
	})
	if err != nil {
		zap.S().Errorw("reminder query failed", "error", err)
		return
	}

	for _, sess := range sessions {
		for _, ref := range []string{sess.Details.ExpertRef, sess.Details.CandidateRef} {
			email, name := s.participantEmail(ctx, ref)
			if email == "" {
				continue
			}

			subject := "Your mock interview starts soon"
			startAt := sess.Details.StartTime.Format(time.RFC1123)
			plain := fmt.Sprintf("Your session %q starts at %s.", sess.Details.Topic, startAt)
			html := templates.RenderSessionReminderEmail(sess.Details.Topic, startAt)

			if err := s.sendEmail(email, name, subject, html, plain); err != nil {
				zap.S().Errorw("failed to send reminder", "sessionID", sess.ID, "email", email, "error", err)
			}
		}

		if err := s.SDB.MarkReminderSent(ctx, sess.ID); err != nil {
			zap.S().Errorw("failed to mark reminder sent", "sessionID", sess.ID, "error", err)
		}
	}
}

// --- Email Helper Functions ---

func (s *Scheduler) sendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	from := mail.NewEmail("MockMate", "no-reply@mockmate.dev")
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
	return nil
}

func (s *Scheduler) participantEmail(ctx context.Context, ref string) (email, name string) {
	var filter bson.M
	if strings.Contains(ref, "@") {
		filter = bson.M{"user.email": strings.ToLower(ref)}
	} else {
		filter = bson.M{"_id": ref}
	}

	user, err := s.UDB.FindOne(ctx, filter)
	if err != nil || user == nil {
		if strings.Contains(ref, "@") {
			return ref, ref
		}
		return "", ""
	}
	return user.Details.Email, user.Details.Name
}
