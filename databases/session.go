package databases

// go generate: mockery --name SessionDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mockmate/mockmate-api/models"
)

const sessionName = "sessions"

// SessionDatabase contains the methods to use with the session database
type SessionDatabase interface {
	FindByID(ctx context.Context, sessionID string) (*models.Session, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Session, error)
	InsertOne(ctx context.Context, session models.Session) (interface{}, error)
	UpdateStatus(ctx context.Context, sessionID, status string) error
	MarkReminderSent(ctx context.Context, sessionID string) error
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type sessionDatabase struct {
	db DatabaseHelper
}

// NewSessionDatabase initializes a new instance of session database with the provided db connection
func NewSessionDatabase(db DatabaseHelper) SessionDatabase {
	return &sessionDatabase{
		db: db,
	}
}

// FindByID returns the session with the given id, or (nil, nil) if no such
// session exists.
func (s *sessionDatabase) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	err := s.db.Collection(sessionName).FindOne(ctx, bson.M{"_id": sessionID}).Decode(session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

func (s *sessionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Session, error) {
	cursor, err := s.db.Collection(sessionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *sessionDatabase) InsertOne(ctx context.Context, session models.Session) (interface{}, error) {
	return s.db.Collection(sessionName).InsertOne(ctx, session)
}

func (s *sessionDatabase) UpdateStatus(ctx context.Context, sessionID, status string) error {
	_, err := s.db.Collection(sessionName).UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{
			"session.status":    status,
			"session.updatedAt": time.Now(),
		}},
	)
	return err
}

// MarkReminderSent stamps the session so the reminder job skips it on the
// next run.
func (s *sessionDatabase) MarkReminderSent(ctx context.Context, sessionID string) error {
	_, err := s.db.Collection(sessionName).UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{
			"session.reminderSentAt": time.Now(),
		}},
	)
	return err
}

func (s *sessionDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return s.db.Collection(sessionName).CountDocuments(ctx, filter, opts...)
}
