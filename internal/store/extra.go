package store

import (
	"fmt"
	"os"
	"path/filepath"
)

func extraPath(dir, id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid extra id %q", id)
	}
	return filepath.Join(dir, extraDir, id), nil
}

func writeExtra(dir, id string, data []byte) error {
	path, err := extraPath(dir, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write extra %s: %w", id, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write extra %s: %w", id, err)
	}
	return nil
}

// Extra returns the raw backend settings stored under extra/<id>.
// A missing file yields an error wrapping os.ErrNotExist.
func (s *Store) Extra(id string) ([]byte, error) {
	path, err := extraPath(s.dir, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read extra %s: %w", id, err)
	}
	return data, nil
}

// SetExtra replaces the backend settings stored under extra/<id>.
func (s *Store) SetExtra(id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	return writeExtra(s.dir, id, data)
}
