package databases

// go generate: mockery --name MeetingDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mockmate/mockmate-api/models"
)

const meetingName = "meetings"

// MeetingDatabase contains the methods to use with the meeting database. The
// meeting row is a durable existence marker keyed 1:1 by session id; the
// signaling relay keeps all live attachment state in memory.
type MeetingDatabase interface {
	Ensure(ctx context.Context, meetingID string) (*models.Meeting, error)
	FindByID(ctx context.Context, meetingID string) (*models.Meeting, error)
	MarkEnded(ctx context.Context, meetingID string) error
}

type meetingDatabase struct {
	db DatabaseHelper
}

// NewMeetingDatabase initializes a new instance of meeting database with the provided db connection
func NewMeetingDatabase(db DatabaseHelper) MeetingDatabase {
	return &meetingDatabase{
		db: db,
	}
}

// Ensure creates the meeting row for meetingID if it does not exist yet and
// returns the row. Safe to call repeatedly; duplicates never error.
func (m *meetingDatabase) Ensure(ctx context.Context, meetingID string) (*models.Meeting, error) {
	upsert := true
	_, err := m.db.Collection(meetingName).UpdateOne(ctx,
		bson.M{"_id": meetingID},
		bson.M{"$setOnInsert": bson.M{
			"meeting.lifecycleStatus": models.MeetingOpen,
			"meeting.createdAt":       time.Now(),
		}},
		&options.UpdateOptions{Upsert: &upsert},
	)
	if err != nil {
		return nil, err
	}
	return m.FindByID(ctx, meetingID)
}

// FindByID returns the meeting with the given id, or (nil, nil) if no such
// meeting exists.
func (m *meetingDatabase) FindByID(ctx context.Context, meetingID string) (*models.Meeting, error) {
	meeting := &models.Meeting{}
	err := m.db.Collection(meetingName).FindOne(ctx, bson.M{"_id": meetingID}).Decode(meeting)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return meeting, nil
}

func (m *meetingDatabase) MarkEnded(ctx context.Context, meetingID string) error {
	_, err := m.db.Collection(meetingName).UpdateOne(ctx,
		bson.M{"_id": meetingID},
		bson.M{"$set": bson.M{
			"meeting.lifecycleStatus": models.MeetingEnded,
			"meeting.endedAt":         time.Now(),
		}},
	)
	return err
}
