package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mockmate/mockmate-api/databases"
	mocksdb "github.com/mockmate/mockmate-api/databases/mocks"
	"github.com/mockmate/mockmate-api/models"
)

func TestScheduler_SweepStaleMeetings(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}

	// one session well past its late-join buffer
	sessionsConn := &mocksdb.CollectionHelper{}
	cursor := &mocksdb.CursorHelper{}
	cursor.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		out := args.Get(1).(*[]models.Session)
		*out = []models.Session{
			{ID: "sess-stale", Details: models.SessionDetails{
				EndTime: time.Now().UTC().Add(-2 * time.Hour),
			}},
		}
	})
	sessionsConn.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)
	db.On("Collection", "sessions").Return(sessionsConn)

	meetingsConn := &mocksdb.CollectionHelper{}
	meetingResult := &mocksdb.SingleResultHelper{}
	meetingResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		m := args.Get(0).(*models.Meeting)
		*m = models.Meeting{ID: "sess-stale", Details: models.MeetingDetails{LifecycleStatus: models.MeetingOpen}}
	})
	meetingsConn.On("FindOne", mock.Anything, mock.Anything).Return(meetingResult)
	meetingsConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1}, nil)
	db.On("Collection", "meetings").Return(meetingsConn)

	s := NewScheduler(
		databases.NewSessionDatabase(db),
		databases.NewMeetingDatabase(db),
		databases.NewUserDatabase(db),
	)

	s.sweepStaleMeetings()

	meetingsConn.AssertCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_SweepSkipsAlreadyEnded(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}

	sessionsConn := &mocksdb.CollectionHelper{}
	cursor := &mocksdb.CursorHelper{}
	cursor.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		out := args.Get(1).(*[]models.Session)
		*out = []models.Session{
			{ID: "sess-done", Details: models.SessionDetails{
				EndTime: time.Now().UTC().Add(-2 * time.Hour),
			}},
		}
	})
	sessionsConn.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)
	db.On("Collection", "sessions").Return(sessionsConn)

	meetingsConn := &mocksdb.CollectionHelper{}
	meetingResult := &mocksdb.SingleResultHelper{}
	meetingResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		m := args.Get(0).(*models.Meeting)
		*m = models.Meeting{ID: "sess-done", Details: models.MeetingDetails{LifecycleStatus: models.MeetingEnded}}
	})
	meetingsConn.On("FindOne", mock.Anything, mock.Anything).Return(meetingResult)
	db.On("Collection", "meetings").Return(meetingsConn)

	s := NewScheduler(
		databases.NewSessionDatabase(db),
		databases.NewMeetingDatabase(db),
		databases.NewUserDatabase(db),
	)

	s.sweepStaleMeetings()

	meetingsConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduler_RemindersMarkedSent(t *testing.T) {
	db := &mocksdb.DatabaseHelper{}

	sessionsConn := &mocksdb.CollectionHelper{}
	cursor := &mocksdb.CursorHelper{}
	cursor.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		out := args.Get(1).(*[]models.Session)
		*out = []models.Session{
			// refs that resolve to no user, so no mail goes out in tests
			{ID: "sess-soon", Details: models.SessionDetails{
				ExpertRef:    "exp-1",
				CandidateRef: "cand-1",
				StartTime:    time.Now().UTC().Add(30 * time.Minute),
				Status:       models.SessionConfirmed,
			}},
		}
	})
	sessionsConn.On("Find", mock.Anything, mock.Anything).Return(cursor, nil)

	var update bson.M
	sessionsConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			update = args.Get(2).(bson.M)
		})
	db.On("Collection", "sessions").Return(sessionsConn)

	usersConn := &mocksdb.CollectionHelper{}
	userResult := &mocksdb.SingleResultHelper{}
	userResult.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	usersConn.On("FindOne", mock.Anything, mock.Anything).Return(userResult)
	db.On("Collection", "users").Return(usersConn)

	s := NewScheduler(
		databases.NewSessionDatabase(db),
		databases.NewMeetingDatabase(db),
		databases.NewUserDatabase(db),
	)

	s.sendUpcomingReminders()

	if assert.NotNil(t, update) {
		set := update["$set"].(bson.M)
		assert.Contains(t, set, "session.reminderSentAt")
	}
}
