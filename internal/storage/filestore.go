package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore persists one JSON document per extension under a directory.
// Writes go to a temp file first and land via rename, so a crash mid-write
// leaves the previous mapping intact.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the mapping for an extension
func (s *FileStore) Load(extensionID string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(extensionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read mapping: %w", err)
	}
	return data, true, nil
}

// Save writes the mapping atomically (write-temp-then-rename)
func (s *FileStore) Save(extensionID string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "mapping-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(extensionID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace mapping: %w", err)
	}
	return nil
}

// Delete removes the mapping file
func (s *FileStore) Delete(extensionID string) error {
	if err := os.Remove(s.path(extensionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(extensionID string) string {
	// Extension ids come off the wire; escape so they cannot traverse
	// out of the storage directory.
	return filepath.Join(s.dir, url.PathEscape(extensionID)+".json")
}
