// Package repository defines the storage contracts the service layer depends on.
//
// Three implementations live in sub-packages:
//
//	sqlite/  default, single file (or ":memory:" in tests)
//	mongo/   the document store the original deployment ran on
//	memory/  maps behind a mutex, for tests and throwaway runs
//
// All three must give the same answers for the same calls. The shared suite
// in repotest/ enforces that.
package repository

import (
	"context"
	"io"

	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/search"
)

// TodoRepository stores todos. Every read and write is scoped by owner:
// a todo that exists but belongs to someone else is reported as
// apperror.ErrNotFound, the same as one that does not exist.
type TodoRepository interface {
	// Create assigns ID and timestamps, then inserts.
	Create(ctx context.Context, todo *model.Todo) error
	GetByID(ctx context.Context, ownerID, id string) (*model.Todo, error)
	// Find returns every todo matching pred, newest first. pred comes from
	// search.Build, so it is always owner-scoped.
	Find(ctx context.Context, pred search.Predicate) ([]model.Todo, error)
	// Update overwrites text, tags and completed of the todo with todo.ID,
	// provided it belongs to todo.UserID, and bumps UpdatedAt.
	Update(ctx context.Context, todo *model.Todo) error
	Delete(ctx context.Context, ownerID, id string) error
}

// UserRepository stores accounts. Emails and GitHub IDs are unique; a
// duplicate is reported as apperror.ErrConflict.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

// Store is one backend serving both repositories.
type Store interface {
	TodoRepository
	UserRepository
	// Ping reports whether the backend is reachable. Used by /healthz.
	Ping(ctx context.Context) error
	io.Closer
}
