package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps uploaded audio on the local filesystem, laid out
// by the key's date prefix: {root}/{YYYY-MM-DD}/{unique}_{filename}.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local filesystem audio store rooted at the
// given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Save writes via a dot-prefixed temp file and renames into place, so
// a concurrent pruner scan or reader never sees a half-written
// upload.
func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	path := filepath.Join(s.root, key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".audio-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *LocalStore) LocalPath(key string) string {
	full := filepath.Join(s.root, key)
	if _, err := os.Stat(full); err == nil {
		return full
	}
	return ""
}

// URL is empty for the local backend; callers fall back to Open.
func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, key))
}

func (s *LocalStore) Exists(ctx context.Context, key string) bool {
	_, err := os.Stat(filepath.Join(s.root, key))
	return err == nil
}

func (s *LocalStore) Type() string { return "local" }

// Dir returns the store's root directory.
func (s *LocalStore) Dir() string { return s.root }
