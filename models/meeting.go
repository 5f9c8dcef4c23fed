package models

import "time"

// Meeting lifecycle status values
const (
	MeetingOpen  = "open"
	MeetingEnded = "ended"
)

// Meeting holds the structure for the meeting collection in mongo. A meeting
// is keyed 1:1 by session id and is only an existence marker plus terminal
// flag; live room attachment state is owned by the signaling relay and never
// persisted here.
type Meeting struct {
	ID      string         `json:"_id" bson:"_id"`
	Details MeetingDetails `json:"meeting" bson:"meeting"`
	Version int32          `json:"__v" bson:"__v"`
}

// MeetingDetails holds the inner meeting structure as defined in the meeting
// collection in mongo
type MeetingDetails struct {
	LifecycleStatus string    `json:"lifecycleStatus" bson:"lifecycleStatus"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	EndedAt         time.Time `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
}
