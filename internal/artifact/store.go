// Package artifact writes the files a run leaves behind: the report, the
// states export and the progress file.
package artifact

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store writes files below a base directory. Writes are atomic: readers see
// either the previous content or the new one.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on first
// write.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir}
}

// Dir returns the base directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute location of name, or an error if name escapes
// the base directory.
func (s *Store) Path(name string) (string, error) {
	if err := validatePath(name); err != nil {
		return "", fmt.Errorf("invalid artifact path %q: %w", name, err)
	}
	return filepath.Join(s.dir, name), nil
}

// Write renders content with fn and stores it under name.
func (s *Store) Write(name string, fn func(w io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return s.WriteBytes(name, buf.Bytes())
}

// WriteBytes stores data under name and returns the file path.
func (s *Store) WriteBytes(name string, data []byte) (string, error) {
	destPath, err := s.Path(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("failed to replace file: %w", err)
	}

	slog.Debug("Wrote file", "bytes", len(data), "path", destPath)
	return destPath, nil
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}

	if filepath.IsAbs(path) {
		return fmt.Errorf("path must be relative, not absolute")
	}

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("path traversal not allowed")
		}
	}

	return nil
}
