// Package upload stores profile images on the local filesystem.
//
// Files are written under a single directory with a random UUID name and the
// original extension, e.g. "3f2b…e1.png". The stored name (not a path) is
// what ends up in model.User.ProfileImage; the server exposes the directory
// under /uploads/.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/tagged-todos/internal/apperror"
)

// MaxAvatarBytes is the largest accepted profile image.
const MaxAvatarBytes = 5 << 20

// allowedTypes maps an accepted extension to the content type the file's
// first bytes must sniff as. Both have to agree: a PNG renamed to .jpg is
// rejected just like a script renamed to .png.
var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// AvatarStore saves and removes uploaded profile images.
type AvatarStore struct {
	dir      string
	maxBytes int64
}

// NewAvatarStore creates dir if needed and returns a store writing into it.
func NewAvatarStore(dir string) (*AvatarStore, error) {
	if dir == "" {
		return nil, errors.New("upload: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: creating %s: %w", dir, err)
	}
	return &AvatarStore{dir: dir, maxBytes: MaxAvatarBytes}, nil
}

// Dir returns the directory files are stored in.
func (s *AvatarStore) Dir() string {
	return s.dir
}

// Save validates and stores one image read from r. filename is the name the
// client sent and is only used for its extension.
//
// Validation failures come back as apperror.ValidationFailed on the
// "profileImage" field so the handler answers 400.
func (s *AvatarStore) Save(r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowedTypes[ext]
	if !ok {
		return "", apperror.ValidationFailed("profileImage", "images only (jpeg, jpg, png)")
	}

	// http.DetectContentType looks at no more than the first 512 bytes.
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("upload: reading image: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", apperror.ValidationFailed("profileImage", "image is empty")
	}
	if got := http.DetectContentType(head); got != want {
		return "", apperror.ValidationFailed("profileImage", "images only (jpeg, jpg, png)")
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("upload: creating %s: %w", name, err)
	}

	// Read one byte past the limit so an oversized upload is detectable
	// without trusting Content-Length.
	body := io.MultiReader(bytes.NewReader(head), r)
	written, copyErr := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("upload: writing %s: %w", name, copyErr)
	case closeErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("upload: closing %s: %w", name, closeErr)
	case written > s.maxBytes:
		os.Remove(path)
		return "", apperror.ValidationFailed("profileImage",
			fmt.Sprintf("image must be %d MiB or smaller", s.maxBytes>>20))
	}

	return name, nil
}

// Remove deletes a previously saved image. A file that is already gone is
// not an error. Names containing a path separator are refused so a stored
// value can never point outside the upload directory.
func (s *AvatarStore) Remove(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("upload: refusing to remove %q", name)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload: removing %s: %w", name, err)
	}
	return nil
}
