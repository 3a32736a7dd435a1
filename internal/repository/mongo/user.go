package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/search"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	EmailFolded  string    `bson:"emailFolded"`
	PasswordHash string    `bson:"passwordHash"`
	FirstName    string    `bson:"firstName"`
	LastName     string    `bson:"lastName"`
	ProfileImage string    `bson:"profileImage"`
	GitHubID     int64     `bson:"githubId,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func newUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		EmailFolded:  search.Fold(u.Email),
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ProfileImage: u.ProfileImage,
		GitHubID:     u.GitHubID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) model() *model.User {
	return &model.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		ProfileImage: d.ProfileImage,
		GitHubID:     d.GitHubID,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.users.InsertOne(ctx, newUserDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", "email or GitHub account already registered")
		}
		return fmt.Errorf("mongo: creating user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}}, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "emailFolded", Value: search.Fold(email)}}, email)
}

func (s *Store) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	key := strconv.FormatInt(githubID, 10)
	if githubID == 0 {
		return nil, apperror.NotFound("user", key)
	}
	return s.findUser(ctx, bson.D{{Key: "githubId", Value: githubID}}, key)
}

func (s *Store) findUser(ctx context.Context, filter bson.D, key string) (*model.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("mongo: getting user %s: %w", key, err)
	}
	return doc.model(), nil
}

// UpdateUser rewrites the account document. githubId is $unset rather than
// stored as 0 when the account isn't linked, keeping it out of the sparse
// unique index.
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()
	doc := newUserDoc(user)

	set := bson.D{
		{Key: "username", Value: doc.Username},
		{Key: "email", Value: doc.Email},
		{Key: "emailFolded", Value: doc.EmailFolded},
		{Key: "passwordHash", Value: doc.PasswordHash},
		{Key: "firstName", Value: doc.FirstName},
		{Key: "lastName", Value: doc.LastName},
		{Key: "profileImage", Value: doc.ProfileImage},
		{Key: "updatedAt", Value: doc.UpdatedAt},
	}
	update := bson.D{{Key: "$set", Value: set}}
	if doc.GitHubID != 0 {
		update[0].Value = append(set, bson.E{Key: "githubId", Value: doc.GitHubID})
	} else {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "githubId", Value: ""}}})
	}

	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: user.ID}}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", "email or GitHub account already registered")
		}
		return fmt.Errorf("mongo: updating user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}
