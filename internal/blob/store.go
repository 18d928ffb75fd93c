// Package blob is the local object store behind presigned upload and
// download URLs. Objects live on disk under a root directory; access goes
// through HMAC-signed URLs minted by the Presigner and enforced by the
// Handler.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned when a write exceeds the configured size cap.
var ErrTooLarge = errors.New("object exceeds size limit")

// ErrNotFound is returned when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Store persists objects under root. Keys are slash-separated paths like
// teams/T1/M1; traversal segments are rejected.
type Store struct {
	root     string
	maxBytes int64
}

// NewStore creates the root directory if needed.
func NewStore(root string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &Store{root: root, maxBytes: maxBytes}, nil
}

// Put writes the object atomically: a temp file in the same directory is
// renamed into place only after a complete write.
func (s *Store) Put(key string, r io.Reader) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	limit := io.Reader(r)
	if s.maxBytes > 0 {
		limit = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, limit)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing object: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		tmp.Close()
		return 0, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp object: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("placing object: %w", err)
	}
	return n, nil
}

// Open returns a reader over the object and its size.
func (s *Store) Open(key string) (io.ReadCloser, int64, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("opening object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("statting object: %w", err)
	}
	return f, info.Size(), nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *Store) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
