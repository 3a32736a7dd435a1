package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tagged-todos/internal/model"
)

var pngBytes = []byte("\x89PNG\x0D\x0A\x1A\x0A\x00\x00\x00\x0DIHDR")

// multipartRequest builds a PUT /api/profile with form fields and, when
// filename is not empty, a profileImage file.
func multipartRequest(t *testing.T, token string, fields map[string]string, filename string, file []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("profileImage", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/profile", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func uploadedFiles(t *testing.T, env *testEnv) []string {
	t.Helper()
	entries, err := os.ReadDir(env.avatars.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProfileHandler_HandleGet(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.signUp("ada@example.com")

	rr := env.do(http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var user model.User
	decode(t, rr, &user)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)

	rr = env.do(http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProfileHandler_HandleUpdate_JSON(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signUp("ada@example.com")

	rr := env.do(http.MethodPut, "/api/profile", token, map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var user model.User
	decode(t, rr, &user)
	assert.Equal(t, "Ada", user.FirstName)
	assert.Equal(t, "Lovelace", user.LastName)
	assert.Equal(t, "ada@example.com", user.Email, "empty fields are left unchanged")
}

func TestProfileHandler_HandleUpdate_Password(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signUp("ada@example.com")

	rr := env.do(http.MethodPut, "/api/profile", token, `{"password":"brand-new-pw"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(http.MethodPost, "/api/login", "", `{"email":"ada@example.com","password":"brand-new-pw"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(http.MethodPost, "/api/login", "", `{"email":"ada@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProfileHandler_HandleUpdate_EmailConflict(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("taken@example.com")
	_, token := env.signUp("ada@example.com")

	rr := env.do(http.MethodPut, "/api/profile", token, `{"email":"taken@example.com"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestProfileHandler_HandleUpdate_Multipart(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signUp("ada@example.com")

	rr := env.serve(multipartRequest(t, token, map[string]string{"firstName": "Ada"}, "me.png", pngBytes))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var user model.User
	decode(t, rr, &user)
	assert.Equal(t, "Ada", user.FirstName)
	require.NotEmpty(t, user.ProfileImage)
	assert.Equal(t, ".png", filepath.Ext(user.ProfileImage))
	assert.Equal(t, []string{user.ProfileImage}, uploadedFiles(t, env))

	// A second upload replaces the first file.
	rr = env.serve(multipartRequest(t, token, nil, "again.png", pngBytes))
	require.Equal(t, http.StatusOK, rr.Code)
	var updated model.User
	decode(t, rr, &updated)
	assert.NotEqual(t, user.ProfileImage, updated.ProfileImage)
	assert.Equal(t, []string{updated.ProfileImage}, uploadedFiles(t, env))
}

func TestProfileHandler_HandleUpdate_RejectsBadImage(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signUp("ada@example.com")

	rr := env.serve(multipartRequest(t, token, nil, "me.gif", []byte("GIF89a")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.serve(multipartRequest(t, token, nil, "me.png", []byte("<?php echo 1; ?>")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Empty(t, uploadedFiles(t, env))
}

func TestProfileHandler_HandleUpdate_FailedUpdateRemovesUpload(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("taken@example.com")
	_, token := env.signUp("ada@example.com")

	rr := env.serve(multipartRequest(t, token, map[string]string{"email": "taken@example.com"}, "me.png", pngBytes))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, uploadedFiles(t, env))
}
