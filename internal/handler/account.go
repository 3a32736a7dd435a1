package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/tagged-todos/internal/service"
)

// AccountHandler serves password registration and login.
type AccountHandler struct {
	accounts *service.AccountService
	session  SessionCookie
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, session SessionCookie, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		session:  session,
		logger:   logger,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is what a client needs right after signing in: who it is
// and the token to send as "Authorization: Bearer <token>".
type authResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

func newAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		ID:       res.User.ID,
		Username: res.User.Username,
		Email:    res.User.Email,
		Token:    res.Token,
	}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/register
// REQUEST BODY: {"username": "ada", "email": "ada@example.com", "password": "..."}
// RESPONSE: 201 {"id", "username", "email", "token"}; 409 if the email is taken
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.session.set(w, res.Token)
	writeJSON(w, http.StatusCreated, newAuthResponse(res))
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /api/login
// REQUEST BODY: {"email": "ada@example.com", "password": "..."}
// RESPONSE: 200 {"id", "username", "email", "token"}; 401 on any mismatch
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.session.set(w, res.Token)
	writeJSON(w, http.StatusOK, newAuthResponse(res))
}
