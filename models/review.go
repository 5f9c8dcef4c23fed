package models

import "time"

// Review holds the structure for the review collection in mongo. Recording a
// review for a session marks that session completed.
type Review struct {
	ID      string        `json:"_id" bson:"_id"`
	Details ReviewDetails `json:"review" bson:"review"`
	Version int32         `json:"__v" bson:"__v"`
}

// ReviewDetails holds the inner review structure as defined in the review
// collection in mongo
type ReviewDetails struct {
	SessionID  string    `json:"sessionID" bson:"sessionID"`
	ReviewerID string    `json:"reviewerID" bson:"reviewerID"`
	Rating     int       `json:"rating" bson:"rating"`
	Comments   string    `json:"comments" bson:"comments"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}
