package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// LocalStorage keeps objects as files below a base directory. Writes go
// through a temp file in the target directory and a rename, so a reader sees
// either the old document or the new one.
type LocalStorage struct {
	base string
	mu   sync.RWMutex
}

func NewLocalStorage(base string) (*LocalStorage, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir %s: %w", base, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", abs, err)
	}
	return &LocalStorage{base: abs}, nil
}

func (s *LocalStorage) file(path string) string {
	return filepath.Join(s.base, filepath.FromSlash(filepath.Clean("/"+path)))
}

func localError(op Op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		err = ErrNotFound
	}
	return &Error{Op: op, Path: path, Err: err}
}

func (s *LocalStorage) Read(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.file(path))
	if err != nil {
		return nil, localError(OpRead, path, err)
	}
	return data, nil
}

func (s *LocalStorage) Write(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := s.file(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return localError(OpWrite, path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".*")
	if err != nil {
		return localError(OpWrite, path, err)
	}
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), full)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return localError(OpWrite, path, err)
	}
	return nil
}

// List returns the objects directly under prefix, sorted. A missing prefix
// lists as empty.
func (s *LocalStorage) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.file(prefix))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, localError(OpList, prefix, err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		paths = append(paths, filepath.ToSlash(filepath.Join(prefix, e.Name())))
	}
	slices.Sort(paths)
	return paths, nil
}

func (s *LocalStorage) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.file(path))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, localError(OpExists, path, err)
	}
}
