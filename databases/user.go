package databases

// go generate: mockery --name UserDatabase

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mockmate/mockmate-api/models"
)

const userName = "users"

// UserDatabase contains the methods to use with the user database
type UserDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.User, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error)
	InsertOne(ctx context.Context, userDetails models.UserDetails) (interface{}, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	ResolveCanonicalEmail(ctx context.Context, identityRef string) (string, error)
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{
		db: db,
	}
}

func (u *userDatabase) FindOne(ctx context.Context, filter interface{}) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userName).FindOne(ctx, filter).Decode(user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error) {
	cursor, err := u.db.Collection(userName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (u *userDatabase) InsertOne(ctx context.Context, userDetails models.UserDetails) (interface{}, error) {
	type user struct {
		User models.UserDetails `bson:"user"`
	}
	return u.db.Collection(userName).InsertOne(ctx, user{User: userDetails})
}

func (u *userDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return u.db.Collection(userName).CountDocuments(ctx, filter, opts...)
}

// ResolveCanonicalEmail maps an identity reference, either a user id or an
// email address, to the email stored on the user record. Returns ("", nil)
// when nothing matches.
func (u *userDatabase) ResolveCanonicalEmail(ctx context.Context, identityRef string) (string, error) {
	var filter bson.M
	if strings.Contains(identityRef, "@") {
		filter = bson.M{"user.email": strings.ToLower(identityRef)}
	} else {
		filter = bson.M{"_id": identityRef}
	}
	user, err := u.FindOne(ctx, filter)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.Details.Email, nil
}
