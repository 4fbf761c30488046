package deltazip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore persists benchmark output artifacts. The default store is
// the local filesystem; an S3-backed store can mirror artifacts to object
// storage.
type ArtifactStore interface {
	// Write stores an artifact under a key, replacing any previous content.
	Write(ctx context.Context, key string, data []byte) error

	// Close releases any resources.
	Close() error
}

// Interface checks.
var (
	_ ArtifactStore = (*FileStore)(nil)
	_ ArtifactStore = (*S3Store)(nil)
)

// FileStore implements ArtifactStore on the local filesystem.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file-based artifact store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("deltazip: create artifact directory: %w", err)
	}
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("deltazip: resolve artifact directory: %w", err)
	}
	return &FileStore{baseDir: filepath.Clean(absDir)}, nil
}

// safePath validates that key stays inside the base directory.
func (f *FileStore) safePath(key string) (string, error) {
	resolved := filepath.Clean(filepath.Join(f.baseDir, filepath.Clean(key)))
	if resolved != f.baseDir && !strings.HasPrefix(resolved, f.baseDir+string(os.PathSeparator)) {
		return "", errors.New("deltazip: invalid artifact key: path escapes base directory")
	}
	return resolved, nil
}

func (f *FileStore) Write(ctx context.Context, key string, data []byte) error {
	path, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (f *FileStore) Close() error { return nil }
