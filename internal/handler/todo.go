package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/auth"
	"github.com/sakif/tagged-todos/internal/search"
	"github.com/sakif/tagged-todos/internal/service"
)

// SearchRecorder receives one call per successful todo search.
// metrics.Metrics implements it; nil disables recording.
type SearchRecorder interface {
	RecordSearch(mode string, results int)
}

// TodoHandler serves the /api/todos endpoints.
//
// Every route sits behind auth.RequireAuth, so the owner ID always comes
// from the verified token in the request context, never from the URL,
// the query string or the body.
type TodoHandler struct {
	todos    *service.TodoService
	recorder SearchRecorder
	logger   *slog.Logger
}

// NewTodoHandler creates a TodoHandler.
func NewTodoHandler(todos *service.TodoService, recorder SearchRecorder, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{
		todos:    todos,
		recorder: recorder,
		logger:   logger,
	}
}

type createTodoRequest struct {
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

// updateTodoRequest uses pointers so "field absent" and "field set to its
// zero value" can be told apart: {"completed": false} must un-complete a
// todo, while {} must leave it alone.
type updateTodoRequest struct {
	Text      *string   `json:"text"`
	Tags      *[]string `json:"tags"`
	Completed *bool     `json:"completed"`
}

type setCompletedRequest struct {
	Completed *bool `json:"completed"`
}

// HandleSearch lists the caller's todos, optionally filtered.
//
// HTTP: GET /api/todos?text=&tags=&strict=&completed=
//
// QUERY PARAMETERS (all optional):
//
//	text       case-insensitive substring of the todo text
//	tags       comma-separated tag list ("work, urgent")
//	strict     "true" → every condition must hold; otherwise any one is enough
//	completed  "true" / "false" → only done / not done todos
//
// No parameters returns every todo the caller owns. Unparseable strict or
// completed values are treated as absent rather than rejected.
//
// A storage failure answers 500 with a fixed message. The real error was
// already logged by the service and is not shown to the client.
func (h *TodoHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	req := search.ParseRequest(r.URL.Query())

	todos, err := h.todos.Search(r.Context(), ownerID, req)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Error fetching todos",
		})
		return
	}

	if h.recorder != nil {
		h.recorder.RecordSearch(req.Mode(), len(todos))
	}

	writeJSON(w, http.StatusOK, todos)
}

// HandleCreate adds a todo for the caller.
//
// HTTP: POST /api/todos
// REQUEST BODY: {"text": "buy milk", "tags": ["home", "errands"]}
// RESPONSE: 201 Created with the stored todo
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req createTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	todo, err := h.todos.Create(r.Context(), ownerID, req.Text, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, todo)
}

// HandleUpdate changes text, tags and/or completion of one todo.
//
// HTTP: PUT /api/todos/{id}
// REQUEST BODY: any subset of {"text": "...", "tags": [...], "completed": true}
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req updateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	todo, err := h.todos.Update(r.Context(), ownerID, chi.URLParam(r, "id"), service.TodoPatch{
		Text:      req.Text,
		Tags:      req.Tags,
		Completed: req.Completed,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, todo)
}

// HandleSetCompleted toggles completion.
//
// HTTP: PATCH /api/todos/{id}/completed
// REQUEST BODY: {"completed": true}
func (h *TodoHandler) HandleSetCompleted(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req setCompletedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Completed == nil {
		writeError(w, apperror.ValidationFailed("completed", "completed is required"))
		return
	}

	todo, err := h.todos.SetCompleted(r.Context(), ownerID, chi.URLParam(r, "id"), *req.Completed)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, todo)
}

// HandleDelete removes one todo.
//
// HTTP: DELETE /api/todos/{id}
// RESPONSE: {"message": "Todo deleted"}
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	if err := h.todos.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Todo deleted"})
}
