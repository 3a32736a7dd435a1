package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/tagged-todos/internal/auth"
	"github.com/sakif/tagged-todos/internal/handler"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/repository"
	"github.com/sakif/tagged-todos/internal/repository/memory"
	"github.com/sakif/tagged-todos/internal/search"
	"github.com/sakif/tagged-todos/internal/service"
	"github.com/sakif/tagged-todos/internal/upload"
)

// testEnv is a complete API on top of the in-memory store: real services,
// real tokens, real handlers, the same routes the server mounts.
type testEnv struct {
	t        *testing.T
	router   chi.Router
	store    *memory.Store
	tokens   *auth.TokenService
	avatars  *upload.AvatarStore
	searches *recordedSearches
}

// failingFind makes every todo search fail the way a dropped database
// connection would.
type failingFind struct {
	repository.TodoRepository
}

func (failingFind) Find(context.Context, search.Predicate) ([]model.Todo, error) {
	return nil, errors.New("sqlite: finding todos: disk I/O error")
}

type recordedSearches struct {
	modes   []string
	results []int
}

func (r *recordedSearches) RecordSearch(mode string, results int) {
	r.modes = append(r.modes, mode)
	r.results = append(r.results, results)
}

type envOption func(*envConfig)

type envConfig struct {
	todos func(repository.TodoRepository) repository.TodoRepository
}

func withTodoRepo(wrap func(repository.TodoRepository) repository.TodoRepository) envOption {
	return func(c *envConfig) { c.todos = wrap }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	var cfg envConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store := memory.New()
	var todoRepo repository.TodoRepository = store
	if cfg.todos != nil {
		todoRepo = cfg.todos(store)
	}

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	avatars, err := upload.NewAvatarStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	session := handler.SessionCookie{TTL: time.Hour}
	accounts := service.NewAccountService(store, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), avatars, logger)
	todos := service.NewTodoService(todoRepo, logger)
	searches := &recordedSearches{}

	todoHandler := handler.NewTodoHandler(todos, searches, logger)
	accountHandler := handler.NewAccountHandler(accounts, session, logger)
	profileHandler := handler.NewProfileHandler(accounts, avatars, logger)
	authHandler := handler.NewAuthHandler(nil, accounts, session, "/", logger)

	r := chi.NewRouter()
	r.Post("/auth/logout", authHandler.HandleLogout)
	r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", accountHandler.HandleRegister)
		r.Post("/login", accountHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/profile", profileHandler.HandleGet)
			r.Put("/profile", profileHandler.HandleUpdate)
			r.Get("/todos", todoHandler.HandleSearch)
			r.Post("/todos", todoHandler.HandleCreate)
			r.Put("/todos/{id}", todoHandler.HandleUpdate)
			r.Patch("/todos/{id}/completed", todoHandler.HandleSetCompleted)
			r.Delete("/todos/{id}", todoHandler.HandleDelete)
		})
	})

	return &testEnv{
		t:        t,
		router:   r,
		store:    store,
		tokens:   tokens,
		avatars:  avatars,
		searches: searches,
	}
}

// do sends a request. body may be nil, a string (sent as-is) or any value
// (JSON-encoded). token may be "" for anonymous requests.
func (e *testEnv) do(method, target, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// signUp registers a user through the API and returns its ID and token.
func (e *testEnv) signUp(email string) (string, string) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/register", "", map[string]string{
		"username": "user", "email": email, "password": "password123",
	})
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())

	var res struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	decode(e.t, rr, &res)
	return res.ID, res.Token
}

// createTodo adds a todo through the API.
func (e *testEnv) createTodo(token, text string, tags ...string) model.Todo {
	e.t.Helper()
	if tags == nil {
		tags = []string{}
	}
	rr := e.do(http.MethodPost, "/api/todos", token, map[string]any{"text": text, "tags": tags})
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())

	var todo model.Todo
	decode(e.t, rr, &todo)
	return todo
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dst), rr.Body.String())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var res handler.ErrorResponse
	decode(t, rr, &res)
	return res
}
