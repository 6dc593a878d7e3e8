// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package file provides a directory-backed implementation of the storage.Backend
// interface laid out as a repository: one sub-directory per file type.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-repokey/pkg/storage"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	// Repository files are immutable once written
	keysFilePerms = 0400
	defaultPerms  = 0600

	tempPrefix = ".tmp-"
)

// FileStorage is a file-based implementation of storage.Backend.
// Writes are atomic: data goes to a temporary file that is renamed into place.
type FileStorage struct {
	mu      sync.RWMutex
	rootDir string
}

// New creates a new FileStorage rooted at rootDir, creating it with 0700
// permissions along with one sub-directory per repository file type.
func New(rootDir string) (*FileStorage, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}

	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to resolve root directory: %w", err)
	}

	for _, t := range storage.FileTypes {
		if err := os.MkdirAll(filepath.Join(abs, string(t)), defaultDirPerms); err != nil {
			return nil, fmt.Errorf("file storage: failed to create directory %q: %w", t, err)
		}
	}

	return &FileStorage{rootDir: abs}, nil
}

// Root returns the absolute repository directory.
func (f *FileStorage) Root() string {
	return f.rootDir
}

// Get retrieves the value for the given key.
// Returns storage.ErrNotFound if the key does not exist.
func (f *FileStorage) Get(key string) ([]byte, error) {
	filePath, err := f.keyToPath(key)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	// #nosec G304 - path is validated and confined to rootDir
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read %q: %w", key, err)
	}
	return data, nil
}

// Put atomically stores the value for the given key.
// File permissions are determined by the key prefix unless opts overrides them:
//   - keys/* = 0400 (owner read only)
//   - default = 0600 (owner rw only)
func (f *FileStorage) Put(key string, value []byte, opts *storage.Options) error {
	filePath, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("file storage: failed to create temp file for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: failed to write %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: failed to sync %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file storage: failed to close %q: %w", key, err)
	}
	if err := os.Chmod(tmpName, getFilePermissions(key, opts)); err != nil {
		return fmt.Errorf("file storage: failed to set permissions on %q: %w", key, err)
	}

	// a read-only file of the same name blocks rename on some platforms
	if _, err := os.Stat(filePath); err == nil {
		_ = os.Chmod(filePath, defaultPerms)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("file storage: failed to store %q: %w", key, err)
	}
	return nil
}

// Delete removes the key and its value from storage.
// Returns storage.ErrNotFound if the key does not exist.
func (f *FileStorage) Delete(key string) error {
	filePath, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to delete %q: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix in sorted order.
// Temporary files from interrupted writes are never reported.
func (f *FileStorage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	start, err := f.listRoot(prefix)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0)
	err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) && path == start {
			return fs.SkipAll
		}
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		key, err := f.pathToKey(path)
		if err != nil {
			return err
		}
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// listRoot returns the directory that holds every key with prefix, so a
// listing of "keys/" never descends into the other type directories.
func (f *FileStorage) listRoot(prefix string) (string, error) {
	i := strings.LastIndex(prefix, "/")
	if i <= 0 {
		return f.rootDir, nil
	}
	return f.keyToPath(prefix[:i])
}

// Exists checks if a key exists in storage.
func (f *FileStorage) Exists(key string) (bool, error) {
	filePath, err := f.keyToPath(key)
	if err != nil {
		return false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: failed to check %q: %w", key, err)
	}
	return true, nil
}

// Close is a no-op provided for interface compliance.
func (f *FileStorage) Close() error {
	return nil
}

// keyToPath converts a slash-separated storage key to a path below rootDir.
func (f *FileStorage) keyToPath(key string) (string, error) {
	if err := validateStorageKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidID, err)
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(key)), nil
}

// validateStorageKey allows nested keys like "keys/<id>" but blocks traversal.
func validateStorageKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key contains null byte")
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return fmt.Errorf("key cannot be an absolute path")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("key contains path traversal attempt")
		}
	}
	return nil
}

// pathToKey converts a file path to a slash-separated storage key.
func (f *FileStorage) pathToKey(path string) (string, error) {
	rel, err := filepath.Rel(f.rootDir, path)
	if err != nil {
		return "", fmt.Errorf("file storage: failed to convert path to key: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

func getFilePermissions(key string, opts *storage.Options) fs.FileMode {
	if opts != nil && opts.Permissions != 0 {
		return opts.Permissions
	}
	if strings.HasPrefix(key, string(storage.KeyFile)+"/") {
		return keysFilePerms
	}
	return defaultPerms
}

var _ storage.Backend = (*FileStorage)(nil)
