package models

import "time"

// Session status values. A session only ever moves forward through these;
// participant references are immutable once the session is created.
const (
	SessionPending   = "pending"
	SessionConfirmed = "confirmed"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// Session holds the structure for the session collection in mongo
type Session struct {
	ID      string         `json:"_id" bson:"_id"`
	Details SessionDetails `json:"session" bson:"session"`
	Version int32          `json:"__v" bson:"__v"`
}

// SessionDetails holds the structure for the inner session structure as
// defined in the session collection in mongo. ExpertRef and CandidateRef
// are identity references: either a user id or an email address, whichever
// form the booking flow recorded at creation time.
type SessionDetails struct {
	ExpertRef      string    `json:"expertRef" bson:"expertRef"`
	CandidateRef   string    `json:"candidateRef" bson:"candidateRef"`
	Topic          string    `json:"topic" bson:"topic"`
	StartTime      time.Time `json:"startTime" bson:"startTime"`
	EndTime        time.Time `json:"endTime" bson:"endTime"`
	Status         string    `json:"status" bson:"status"`
	PriceCents     int64     `json:"priceCents" bson:"priceCents"`
	ReminderSentAt time.Time `json:"reminderSentAt,omitempty" bson:"reminderSentAt,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}
