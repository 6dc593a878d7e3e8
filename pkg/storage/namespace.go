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

package storage

import (
	"fmt"
	"strings"
)

// FileType is the category a repository file is stored under.
type FileType string

const (
	// KeyFile holds password-protected copies of the master key.
	KeyFile FileType = "keys"

	// ConfigFile holds the encrypted repository configuration.
	ConfigFile FileType = "config"

	SnapshotFile FileType = "snapshots"
	IndexFile    FileType = "index"
	PackFile     FileType = "data"
	LockFile     FileType = "locks"
)

// FileTypes lists every category in a fixed order.
var FileTypes = []FileType{KeyFile, ConfigFile, SnapshotFile, IndexFile, PackFile, LockFile}

// ParseFileType validates a category name.
func ParseFileType(s string) (FileType, error) {
	for _, t := range FileTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFileType, s)
}

// Path returns the storage key for a file: {type}/{id}.
func Path(t FileType, id ID) string {
	return string(t) + "/" + id.String()
}

// Namespace provides typed, content-addressed access to a Backend.
type Namespace struct {
	backend Backend
}

// NewNamespace wraps backend.
func NewNamespace(backend Backend) *Namespace {
	return &Namespace{backend: backend}
}

// Backend returns the underlying key-value backend.
func (n *Namespace) Backend() Backend {
	return n.backend
}

// List returns the IDs stored under t in the order the backend reports them.
// Entries whose names are not valid IDs are skipped.
func (n *Namespace) List(t FileType) ([]ID, error) {
	prefix := string(t) + "/"
	keys, err := n.backend.List(prefix)
	if err != nil {
		return nil, err
	}

	ids := make([]ID, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, prefix)
		if strings.Contains(name, "/") {
			continue
		}
		id, err := ParseID(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadFull returns the contents of the file t/id.
func (n *Namespace) ReadFull(t FileType, id ID) ([]byte, error) {
	if id.IsNull() {
		return nil, ErrInvalidID
	}
	return n.backend.Get(Path(t, id))
}

// Save stores data under its SHA-256 hash.
func (n *Namespace) Save(t FileType, data []byte) (ID, error) {
	id := Hash(data)
	opts := &Options{Metadata: map[string]string{"type": string(t)}}
	if err := n.backend.Put(Path(t, id), data, opts); err != nil {
		return ID{}, err
	}
	return id, nil
}

// Remove deletes the file t/id.
func (n *Namespace) Remove(t FileType, id ID) error {
	if id.IsNull() {
		return ErrInvalidID
	}
	return n.backend.Delete(Path(t, id))
}

// Exists reports whether t/id is stored.
func (n *Namespace) Exists(t FileType, id ID) (bool, error) {
	return n.backend.Exists(Path(t, id))
}

// Find resolves a hex prefix to the single matching ID under t.
// A full-length prefix is parsed directly without listing.
func (n *Namespace) Find(t FileType, prefix string) (ID, error) {
	if len(prefix) == 2*IDSize {
		return ParseID(prefix)
	}
	if prefix == "" {
		return ID{}, ErrInvalidID
	}

	ids, err := n.List(t)
	if err != nil {
		return ID{}, err
	}

	var (
		match ID
		found bool
	)
	for _, id := range ids {
		if !strings.HasPrefix(id.String(), prefix) {
			continue
		}
		if found {
			return ID{}, fmt.Errorf("%w: %q", ErrAmbiguousID, prefix)
		}
		match, found = id, true
	}
	if !found {
		return ID{}, fmt.Errorf("%w: no %s file matches %q", ErrNotFound, t, prefix)
	}
	return match, nil
}

var _ WriteBackend = (*Namespace)(nil)
