// Package memory is a repository.Store kept entirely in process memory.
//
// It answers searches by running search.Match over every todo, which makes
// it the executable reference for the predicate semantics the SQL and BSON
// translations must reproduce. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/repository"
	"github.com/sakif/tagged-todos/internal/search"
)

var _ repository.Store = (*Store)(nil)

// Store holds users and todos in maps guarded by one RWMutex. Values are
// copied in and out so callers never share memory with the store.
type Store struct {
	mu    sync.RWMutex
	users map[string]model.User
	todos map[string]model.Todo
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users: make(map[string]model.User),
		todos: make(map[string]model.Todo),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// =========================================================================
// TODOS
// =========================================================================

func (s *Store) Create(_ context.Context, todo *model.Todo) error {
	now := time.Now().UTC()
	todo.ID = xid.New().String()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	if todo.Tags == nil {
		todo.Tags = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos[todo.ID] = cloneTodo(*todo)
	return nil
}

func (s *Store) GetByID(_ context.Context, ownerID, id string) (*model.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.todos[id]
	if !ok || t.UserID != ownerID {
		return nil, apperror.NotFound("todo", id)
	}
	out := cloneTodo(t)
	return &out, nil
}

func (s *Store) Find(_ context.Context, pred search.Predicate) ([]model.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Todo, 0)
	for _, t := range s.todos {
		if search.Match(pred, t) {
			out = append(out, cloneTodo(t))
		}
	}

	// Newest first; xid order breaks timestamp ties the same way the other
	// backends do.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) Update(_ context.Context, todo *model.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.todos[todo.ID]
	if !ok || existing.UserID != todo.UserID {
		return apperror.NotFound("todo", todo.ID)
	}

	todo.UpdatedAt = time.Now().UTC()
	todo.CreatedAt = existing.CreatedAt
	if todo.Tags == nil {
		todo.Tags = []string{}
	}
	s.todos[todo.ID] = cloneTodo(*todo)
	return nil
}

func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok || t.UserID != ownerID {
		return apperror.NotFound("todo", id)
	}
	delete(s.todos, id)
	return nil
}

func cloneTodo(t model.Todo) model.Todo {
	t.Tags = append([]string{}, t.Tags...)
	return t
}

// =========================================================================
// USERS
// =========================================================================

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(*user, ""); err != nil {
		return err
	}

	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (s *Store) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if githubID != 0 {
		for _, u := range s.users {
			if u.GitHubID == githubID {
				return &u, nil
			}
		}
	}
	return nil, apperror.NotFound("user", strconv.FormatInt(githubID, 10))
}

func (s *Store) UpdateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	if err := s.checkUnique(*user, user.ID); err != nil {
		return err
	}

	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = *user
	return nil
}

// checkUnique mirrors the unique indexes of the database backends. self is
// the ID being updated, which may of course keep its own email.
// Callers hold s.mu.
func (s *Store) checkUnique(user model.User, self string) error {
	for id, u := range s.users {
		if id == self {
			continue
		}
		if strings.EqualFold(u.Email, user.Email) || (user.GitHubID != 0 && u.GitHubID == user.GitHubID) {
			return apperror.Conflict("user", "email or GitHub account already registered")
		}
	}
	return nil
}
