package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/auth"
	"github.com/sakif/tagged-todos/internal/service"
	"github.com/sakif/tagged-todos/internal/upload"
)

// AvatarSaver stores and deletes profile images. upload.AvatarStore
// implements it.
type AvatarSaver interface {
	Save(r io.Reader, filename string) (string, error)
	Remove(name string) error
}

// maxProfileBody bounds a multipart profile update: the image plus some
// room for the text fields and multipart framing.
const maxProfileBody = upload.MaxAvatarBytes + 1<<20

// ProfileHandler serves the signed-in user's own profile.
type ProfileHandler struct {
	accounts *service.AccountService
	avatars  AvatarSaver
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(accounts *service.AccountService, avatars AvatarSaver, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		accounts: accounts,
		avatars:  avatars,
		logger:   logger,
	}
}

type profileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// HandleGet returns the current user.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate changes the current user's profile.
//
// HTTP: PUT /api/profile
//
// Accepts either a JSON body or multipart/form-data with the same field
// names plus an optional "profileImage" file. Empty fields are left
// unchanged, so a form can send every input and only the filled ones apply.
//
// ORDER OF OPERATIONS:
// The image is saved first so its name can go into the update. If the
// update then fails (e.g. the new email is taken), the just-saved file is
// removed again. The previous image is removed by the service only after
// the update succeeded.
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var (
		req       profileRequest
		savedName string
		err       error
	)
	if isMultipart(r) {
		req, savedName, err = h.readMultipart(w, r)
	} else {
		err = decodeJSON(w, r, &req)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	upd := service.ProfileUpdate{
		FirstName: optional(req.FirstName),
		LastName:  optional(req.LastName),
		Email:     optional(req.Email),
		Password:  optional(req.Password),
	}
	if savedName != "" {
		upd.ProfileImage = &savedName
	}

	user, err := h.accounts.UpdateProfile(r.Context(), userID, upd)
	if err != nil {
		if savedName != "" {
			if rmErr := h.avatars.Remove(savedName); rmErr != nil {
				h.logger.Warn("failed to remove orphaned upload",
					slog.String("image", savedName),
					slog.String("error", rmErr.Error()),
				)
			}
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// readMultipart parses the form and, when present, stores the uploaded
// image. It returns the stored file name ("" without an upload).
func (h *ProfileHandler) readMultipart(w http.ResponseWriter, r *http.Request) (profileRequest, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProfileBody)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return profileRequest{}, "", apperror.ValidationFailed("profileImage", "image must be 5 MiB or smaller")
		}
		return profileRequest{}, "", apperror.ValidationFailed("body", "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	req := profileRequest{
		FirstName: r.FormValue("firstName"),
		LastName:  r.FormValue("lastName"),
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
	}

	file, header, err := r.FormFile("profileImage")
	if errors.Is(err, http.ErrMissingFile) {
		return req, "", nil
	}
	if err != nil {
		return profileRequest{}, "", apperror.ValidationFailed("profileImage", "invalid file upload")
	}
	defer file.Close()

	name, err := h.avatars.Save(file, header.Filename)
	if err != nil {
		return profileRequest{}, "", err
	}
	return req, name, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// optional maps "" to nil ("leave unchanged").
func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
