package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/search"
)

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written fakes instead of a mock framework: each one is a few maps
// and an optional error to inject, and you can read exactly what it does.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeTodoRepo struct {
	todos  map[string]model.Todo
	nextID int

	lastPred search.Predicate // what the service asked Find for
	findErr  error
	saveErr  error
}

func newFakeTodoRepo() *fakeTodoRepo {
	return &fakeTodoRepo{todos: make(map[string]model.Todo)}
}

func (f *fakeTodoRepo) Create(_ context.Context, todo *model.Todo) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.nextID++
	todo.ID = fmt.Sprintf("todo-%d", f.nextID)
	f.todos[todo.ID] = *todo
	return nil
}

func (f *fakeTodoRepo) GetByID(_ context.Context, ownerID, id string) (*model.Todo, error) {
	t, ok := f.todos[id]
	if !ok || t.UserID != ownerID {
		return nil, apperror.NotFound("todo", id)
	}
	return &t, nil
}

func (f *fakeTodoRepo) Find(_ context.Context, pred search.Predicate) ([]model.Todo, error) {
	f.lastPred = pred
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]model.Todo, 0)
	for _, t := range f.todos {
		if search.Match(pred, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTodoRepo) Update(_ context.Context, todo *model.Todo) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	t, ok := f.todos[todo.ID]
	if !ok || t.UserID != todo.UserID {
		return apperror.NotFound("todo", todo.ID)
	}
	f.todos[todo.ID] = *todo
	return nil
}

func (f *fakeTodoRepo) Delete(_ context.Context, ownerID, id string) error {
	t, ok := f.todos[id]
	if !ok || t.UserID != ownerID {
		return apperror.NotFound("todo", id)
	}
	delete(f.todos, id)
	return nil
}

type fakeUserRepo struct {
	users  map[string]model.User
	nextID int

	lookupErr error // returned by every Get*
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperror.Conflict("user", "email or GitHub account already registered")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetUserByGitHubID(_ context.Context, id int64) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, u := range f.users {
		if id != 0 && u.GitHubID == id {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprint(id))
}

func (f *fakeUserRepo) UpdateUser(_ context.Context, user *model.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	f.users[user.ID] = *user
	return nil
}

type fakeAvatars struct {
	removed []string
	err     error
}

func (f *fakeAvatars) Remove(name string) error {
	f.removed = append(f.removed, name)
	return f.err
}
