// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes,
// and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config, builds the logger and opens the store, then:
//
//	Server.New() creates: TokenService, PasswordService, AvatarStore
//	                      → TodoService, AccountService
//	                      → TodoHandler, AccountHandler, ProfileHandler, AuthHandler
//
// This is the "composition root" pattern: all dependencies are wired in
// one place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/tagged-todos/internal/auth"
	"github.com/sakif/tagged-todos/internal/config"
	"github.com/sakif/tagged-todos/internal/handler"
	"github.com/sakif/tagged-todos/internal/metrics"
	"github.com/sakif/tagged-todos/internal/middleware"
	"github.com/sakif/tagged-todos/internal/repository"
	"github.com/sakif/tagged-todos/internal/service"
	"github.com/sakif/tagged-todos/internal/upload"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. When the server shuts down we close it to
// flush pending writes (SQLite WAL) or disconnect (MongoDB). This happens
// in Start() after the HTTP server has drained.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  *slog.Logger
	store   repository.Store
	metrics *metrics.Metrics // nil when metrics are disabled
}

// New wires every layer on top of store.
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete store)
// - Handlers get services (not the repository or DB)
func New(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the router. Tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                      → liveness + store ping
// GET    /metrics                      → Prometheus (if enabled)
// GET    /uploads/*                    → profile images
// GET    /auth/github/login            → GitHub sign-in (if configured)
// GET    /auth/github/callback
// POST   /auth/logout                  → clear cookie
// POST   /api/register                 → create account
// POST   /api/login                    → password sign-in
// GET    /api/profile                  → current user           [auth]
// PUT    /api/profile                  → update profile         [auth]
// GET    /api/todos                    → search                 [auth]
// POST   /api/todos                    → create                 [auth]
// PUT    /api/todos/{id}               → update                 [auth]
// PATCH  /api/todos/{id}/completed     → set completion         [auth]
// DELETE /api/todos/{id}               → delete                 [auth]
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID: assigns unique ID to each request (the logger reads it)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. Metrics: counts and times requests per route
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.cfg.Auth.JWTSecret, s.cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	avatars, err := upload.NewAvatarStore(s.cfg.Upload.Dir)
	if err != nil {
		return fmt.Errorf("creating upload store: %w", err)
	}

	var github *auth.GitHubProvider
	if s.cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.cfg.GitHub.ClientID, s.cfg.GitHub.ClientSecret, s.cfg.GitHub.CallbackURL)
	} else {
		s.logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID not set)")
	}

	session := handler.SessionCookie{TTL: tokens.TTL(), Secure: s.cfg.Server.SecureCookies}

	// === Services ===
	todoService := service.NewTodoService(s.store, s.logger)
	accountService := service.NewAccountService(s.store, tokens, auth.NewPasswordService(), avatars, s.logger)

	// === Handlers ===
	// A nil *metrics.Metrics must not reach the handler as a non-nil
	// interface, so the recorder is assigned only when metrics are on.
	var recorder handler.SearchRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	todoHandler := handler.NewTodoHandler(todoService, recorder, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, session, s.logger)
	profileHandler := handler.NewProfileHandler(accountService, avatars, s.logger)
	authHandler := handler.NewAuthHandler(github, accountService, session, s.cfg.GitHub.RedirectURL, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Get("/healthz", s.handleHealth)

	// === Uploaded Files ===
	// http.StripPrefix removes "/uploads/" before the file lookup, so
	// GET /uploads/abc.png → serves {UploadDir}/abc.png.
	s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(avatars.Dir())))))

	// === Auth Routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", accountHandler.HandleRegister)
		r.Post("/login", accountHandler.HandleLogin)

		// Protected routes: RequireAuth puts the user ID in the context
		// or answers 401 itself.
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

	return nil
}

// handleHealth answers 200 when the store responds within two seconds.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// noDirListing hides http.FileServer's directory index pages.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (Server.ShutdownTimeout)
// 3. Close the store (flushes WAL, releases file lock, disconnects Mongo)
func (s *Server) Start() error {
	// Ensure the store is closed when the server stops.
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("storage", s.cfg.Storage.Driver),
			slog.Bool("metrics", s.metrics != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
