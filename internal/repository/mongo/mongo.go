// Package mongo implements the repository interfaces on MongoDB.
//
// DOCUMENT LAYOUT:
//
//	users  { _id, username, email, emailFolded, passwordHash, firstName,
//	         lastName, profileImage, githubId?, createdAt, updatedAt }
//	todos  { _id, userId, text, textFolded, tags, tagsFolded, completed,
//	         createdAt, updatedAt }
//
// IDs are xid strings rather than ObjectIDs so they look the same as the
// IDs the SQLite store hands out; clients never need to know which backend
// is running.
//
// The *Folded fields hold search.Fold copies of the text, tags and email.
// Searching them with plain equality and a case-sensitive $regex matches
// the Go evaluator exactly, including for non-ASCII input, and lets the
// tag lookup use the tagsFolded multikey index.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/tagged-todos/internal/repository"
)

var _ repository.Store = (*Store)(nil)

const (
	usersCollection = "users"
	todosCollection = "todos"
)

// Store is a repository.Store backed by one MongoDB database.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	todos  *mongo.Collection
}

// New connects to uri, verifies the connection and makes sure the indexes
// exist. Index creation is idempotent, so this is safe on every start.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client: client,
		users:  db.Collection(usersCollection),
		todos:  db.Collection(todosCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: creating indexes: %w", err)
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "emailFolded", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Sparse: accounts without githubId are left out of the index
			// instead of all colliding on a missing value.
			Keys:    bson.D{{Key: "githubId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}

	_, err = s.todos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "tagsFolded", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("todos: %w", err)
	}
	return nil
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo: ping: %w", err)
	}
	return nil
}

// Close disconnects the client, waiting at most five seconds for in-flight
// operations.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// drop removes the whole database. Tests use it for cleanup.
func (s *Store) drop(ctx context.Context) error {
	return s.todos.Database().Drop(ctx)
}
