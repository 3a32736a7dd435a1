package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/search"
)

type todoDoc struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"userId"`
	Text       string    `bson:"text"`
	TextFolded string    `bson:"textFolded"`
	Tags       []string  `bson:"tags"`
	TagsFolded []string  `bson:"tagsFolded"`
	Completed  bool      `bson:"completed"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func newTodoDoc(t *model.Todo) todoDoc {
	folded := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		folded[i] = search.Fold(tag)
	}
	return todoDoc{
		ID:         t.ID,
		UserID:     t.UserID,
		Text:       t.Text,
		TextFolded: search.Fold(t.Text),
		Tags:       t.Tags,
		TagsFolded: folded,
		Completed:  t.Completed,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func (d todoDoc) model() model.Todo {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.Todo{
		ID:        d.ID,
		UserID:    d.UserID,
		Text:      d.Text,
		Tags:      tags,
		Completed: d.Completed,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func (s *Store) Create(ctx context.Context, todo *model.Todo) error {
	todo.ID = xid.New().String()
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	if todo.Tags == nil {
		todo.Tags = []string{}
	}

	if _, err := s.todos.InsertOne(ctx, newTodoDoc(todo)); err != nil {
		return fmt.Errorf("mongo: creating todo: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, ownerID, id string) (*model.Todo, error) {
	var doc todoDoc
	err := s.todos.FindOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "userId", Value: ownerID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("todo", id)
		}
		return nil, fmt.Errorf("mongo: getting todo %s: %w", id, err)
	}
	t := doc.model()
	return &t, nil
}

// Find returns every todo matching pred, newest first.
func (s *Store) Find(ctx context.Context, pred search.Predicate) ([]model.Todo, error) {
	filter, err := filterDoc(pred)
	if err != nil {
		return nil, fmt.Errorf("mongo: finding todos: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.todos.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: finding todos: %w", err)
	}
	defer cur.Close(ctx)

	todos := make([]model.Todo, 0)
	for cur.Next(ctx) {
		var doc todoDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decoding todo: %w", err)
		}
		todos = append(todos, doc.model())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterating todos: %w", err)
	}
	return todos, nil
}

func (s *Store) Update(ctx context.Context, todo *model.Todo) error {
	todo.UpdatedAt = time.Now().UTC()
	if todo.Tags == nil {
		todo.Tags = []string{}
	}
	doc := newTodoDoc(todo)

	res, err := s.todos.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: todo.ID}, {Key: "userId", Value: todo.UserID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "text", Value: doc.Text},
			{Key: "textFolded", Value: doc.TextFolded},
			{Key: "tags", Value: doc.Tags},
			{Key: "tagsFolded", Value: doc.TagsFolded},
			{Key: "completed", Value: doc.Completed},
			{Key: "updatedAt", Value: doc.UpdatedAt},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongo: updating todo %s: %w", todo.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("todo", todo.ID)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.todos.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "userId", Value: ownerID}})
	if err != nil {
		return fmt.Errorf("mongo: deleting todo %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("todo", id)
	}
	return nil
}
