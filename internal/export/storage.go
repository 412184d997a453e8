package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines where exported artifacts are kept
type Storage interface {
	// Save saves an artifact and returns its path
	Save(artifact Artifact) (string, error)

	// Get retrieves a saved artifact's bytes by file name
	Get(name string) ([]byte, error)

	// Delete removes a saved artifact
	Delete(name string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save writes the artifact under its file name, replacing an earlier export of the same invoice
func (l *LocalStorage) Save(artifact Artifact) (string, error) {
	if artifact.FileName == "" || filepath.Base(artifact.FileName) != artifact.FileName {
		return "", fmt.Errorf("invalid file name %q", artifact.FileName)
	}
	path := filepath.Join(l.basePath, artifact.FileName)
	if err := os.WriteFile(path, artifact.Data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// Get retrieves an artifact from local storage
func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes an artifact from local storage
func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(filepath.Join(l.basePath, filepath.Base(name))); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
