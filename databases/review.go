package databases

// go generate: mockery --name ReviewDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mockmate/mockmate-api/models"
)

const reviewName = "reviews"

// ReviewDatabase contains the methods to use with the review database
type ReviewDatabase interface {
	InsertOne(ctx context.Context, review models.Review) (interface{}, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Review, error)
}

type reviewDatabase struct {
	db DatabaseHelper
}

// NewReviewDatabase initializes a new instance of review database with the provided db connection
func NewReviewDatabase(db DatabaseHelper) ReviewDatabase {
	return &reviewDatabase{
		db: db,
	}
}

func (r *reviewDatabase) InsertOne(ctx context.Context, review models.Review) (interface{}, error) {
	return r.db.Collection(reviewName).InsertOne(ctx, review)
}

func (r *reviewDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Review, error) {
	cursor, err := r.db.Collection(reviewName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var reviews []models.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}
