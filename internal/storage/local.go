// Package storage keeps uploaded movie posters on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxBytes is the largest accepted upload.
const MaxBytes = 10 << 20

var (
	ErrNotFound        = errors.New("asset not found")
	ErrUnsupportedType = errors.New("unsupported file type, expected jpeg, jpg, png or gif")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("empty file")
)

var extensions = map[string]string{
	"image/jpeg": ".jpeg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// LocalStore saves assets under a single directory.
type LocalStore struct {
	dir      string
	maxBytes int64
}

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir string, maxBytes int64) (*LocalStore, error) {
	if maxBytes <= 0 {
		maxBytes = MaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes}, nil
}

// Store writes data under a new file name derived from owner and returns
// that name.  Both the declared mime and the sniffed content must be an
// accepted image type.
func (s *LocalStore) Store(owner string, data []byte, mime string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(mime))]
	if !ok {
		return "", ErrUnsupportedType
	}
	if _, ok := extensions[mimetype.Detect(data).String()]; !ok {
		return "", ErrUnsupportedType
	}
	name := fmt.Sprintf("%s-%s%s", owner, uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write asset: %w", err)
	}
	return name, nil
}

// path resolves name inside the store, rejecting anything that is not a
// plain file name.
func (s *LocalStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, name), nil
}

// Retrieve returns the content of a stored asset.
func (s *LocalStore) Retrieve(name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Delete removes an asset.  Missing files are ignored.
func (s *LocalStore) Delete(name string) error {
	p, err := s.path(name)
	if err != nil {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
