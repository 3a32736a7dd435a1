// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the store
//
// Services accept plain Go values (owner IDs, strings, search.Request),
// never *http.Request, and return domain errors from apperror, never HTTP
// status codes. The handler translates one into the other.
//
// DEPENDENCY INJECTION:
// TodoService takes a repository.TodoRepository (interface), not a concrete
// store. main.go decides between SQLite, MongoDB and the memory store;
// tests pass a hand-written fake.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/repository"
	"github.com/sakif/tagged-todos/internal/search"
)

// Validation limits, counted in characters.
const (
	MaxTodoTextLength = 1000
	MaxTagsPerTodo    = 20
	MaxTagLength      = 50
)

// TodoService handles business logic for todos.
//
// Every method takes the owner's ID as an explicit argument. The handler
// gets it from the verified token; nothing in here ever reads it from
// client input.
type TodoService struct {
	repo   repository.TodoRepository
	logger *slog.Logger
}

// NewTodoService creates a new TodoService.
func NewTodoService(repo repository.TodoRepository, logger *slog.Logger) *TodoService {
	return &TodoService{
		repo:   repo,
		logger: logger,
	}
}

// Search returns ownerID's todos matching req.
//
// The filter is always search.Build(ownerID, req): the owner restriction is
// applied before, and independently of, anything the request asks for.
// A storage failure is logged here with full detail and returned wrapped;
// the handler shows the client only a generic message.
func (s *TodoService) Search(ctx context.Context, ownerID string, req search.Request) ([]model.Todo, error) {
	if ownerID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	pred := search.Build(ownerID, req)
	s.logger.Debug("searching todos",
		slog.String("owner", ownerID),
		slog.String("mode", req.Mode()),
		slog.String("filter", pred.String()),
	)

	todos, err := s.repo.Find(ctx, pred)
	if err != nil {
		s.logger.Error("failed to search todos",
			slog.String("owner", ownerID),
			slog.String("filter", pred.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("searching todos: %w", err)
	}

	return todos, nil
}

// Create validates and saves a new todo. New todos always start out not
// completed.
func (s *TodoService) Create(ctx context.Context, ownerID, text string, tags []string) (*model.Todo, error) {
	text, err := validateText(text)
	if err != nil {
		return nil, err
	}
	tags, err = NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	todo := &model.Todo{
		UserID:    ownerID,
		Text:      text,
		Tags:      tags,
		Completed: false,
	}

	if err := s.repo.Create(ctx, todo); err != nil {
		s.logger.Error("failed to create todo",
			slog.String("owner", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating todo: %w", err)
	}

	s.logger.Info("todo created",
		slog.String("id", todo.ID),
		slog.String("owner", ownerID),
		slog.Int("tags", len(todo.Tags)),
	)

	return todo, nil
}

// TodoPatch lists the fields an update may change. A nil field is left as
// it is; a non-nil Tags replaces the whole tag list (an empty list clears it).
type TodoPatch struct {
	Text      *string
	Tags      *[]string
	Completed *bool
}

// Update applies patch to one of ownerID's todos.
//
// STRATEGY: fetch, modify, save. The fetch is owner-scoped, so a todo that
// belongs to someone else fails here with NotFound before anything changes.
func (s *TodoService) Update(ctx context.Context, ownerID, id string, patch TodoPatch) (*model.Todo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "todo ID is required")
	}

	todo, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if patch.Text != nil {
		text, err := validateText(*patch.Text)
		if err != nil {
			return nil, err
		}
		todo.Text = text
	}
	if patch.Tags != nil {
		tags, err := NormalizeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		todo.Tags = tags
	}
	if patch.Completed != nil {
		todo.Completed = *patch.Completed
	}

	if err := s.repo.Update(ctx, todo); err != nil {
		s.logger.Error("failed to update todo",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating todo: %w", err)
	}

	s.logger.Info("todo updated", slog.String("id", id), slog.String("owner", ownerID))
	return todo, nil
}

// SetCompleted marks one of ownerID's todos done or not done.
func (s *TodoService) SetCompleted(ctx context.Context, ownerID, id string, completed bool) (*model.Todo, error) {
	return s.Update(ctx, ownerID, id, TodoPatch{Completed: &completed})
}

// Delete removes one of ownerID's todos.
// Returns apperror.ErrNotFound if it doesn't exist or isn't theirs.
func (s *TodoService) Delete(ctx context.Context, ownerID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "todo ID is required")
	}

	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	s.logger.Info("todo deleted", slog.String("id", id), slog.String("owner", ownerID))
	return nil
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.ValidationFailed("text", "todo text is required")
	}
	if utf8.RuneCountInString(text) > MaxTodoTextLength {
		return "", apperror.ValidationFailed("text",
			fmt.Sprintf("todo text must be %d characters or less", MaxTodoTextLength))
	}
	return text, nil
}

// NormalizeTags trims every tag, drops empty ones and removes duplicates
// that differ only in case, keeping the first spelling. A tag containing a
// comma is rejected: the search endpoint splits its tags parameter on
// commas, so such a tag could never be searched for.
//
// The result is never nil.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if strings.Contains(tag, ",") {
			return nil, apperror.ValidationFailed("tags", fmt.Sprintf("tag %q must not contain a comma", tag))
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}

		key := search.Fold(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}

	if len(out) > MaxTagsPerTodo {
		return nil, apperror.ValidationFailed("tags",
			fmt.Sprintf("a todo can have at most %d tags", MaxTagsPerTodo))
	}
	return out, nil
}
