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

// readOnly rejects all mutations of the wrapped backend.
type readOnly struct {
	Backend
}

// ReadOnly returns a view of backend whose Put and Delete fail with ErrReadOnly.
func ReadOnly(backend Backend) Backend {
	return readOnly{Backend: backend}
}

func (readOnly) Put(string, []byte, *Options) error { return ErrReadOnly }

func (readOnly) Delete(string) error { return ErrReadOnly }
