package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evolvedb/evolve/internal/errors"
)

// LocalStore keeps archived objects on the local filesystem, mainly for
// development and tests. Object paths map directly to files under the
// base directory.
type LocalStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewLocalStore creates a local object store rooted at basePath,
// creating the directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("archive: failed to create base directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) fullPath(objectPath string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(objectPath))
}

// Put stores data under objectPath, creating parent directories as
// needed.
func (s *LocalStore) Put(ctx context.Context, objectPath string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("failed to create directory for %s", objectPath), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("failed to write %s", objectPath), err)
	}
	return nil
}

// Get retrieves the object at objectPath.
func (s *LocalStore) Get(ctx context.Context, objectPath string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.fullPath(objectPath))
	if os.IsNotExist(err) {
		return nil, errors.NewStorageError(errors.CodeObjectNotFound,
			fmt.Sprintf("object not found: %s", objectPath), err)
	}
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("failed to read %s", objectPath), err)
	}
	return data, nil
}

// Exists reports whether an object is present.
func (s *LocalStore) Exists(ctx context.Context, objectPath string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.fullPath(objectPath))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("archive: failed to stat %s: %w", objectPath, err)
	}
	return true, nil
}

// List returns the paths of all objects under prefix, sorted.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var paths []string
	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		objectPath := filepath.ToSlash(rel)
		if strings.HasPrefix(objectPath, prefix) {
			paths = append(paths, objectPath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: failed to list objects: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Delete removes an object. Deleting a missing object succeeds.
func (s *LocalStore) Delete(ctx context.Context, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.fullPath(objectPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("archive: failed to delete %s: %w", objectPath, err)
	}
	return nil
}
