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

package repository

import "errors"

var (
	// ErrAlreadyInitialized is returned by Init when the backend already holds a config.
	ErrAlreadyInitialized = errors.New("repository: already initialized")

	// ErrNotInitialized is returned by Open when the backend holds no config.
	ErrNotInitialized = errors.New("repository: not initialized")

	// ErrInvalidConfig is returned when the decrypted config does not validate.
	ErrInvalidConfig = errors.New("repository: invalid config")

	// ErrKeyInUse is returned when removing the key record the repository was opened with.
	ErrKeyInUse = errors.New("repository: refusing to remove the key currently in use")

	// ErrKeyNotFound is returned when a key record id or prefix does not exist.
	ErrKeyNotFound = errors.New("repository: key not found")

	ErrNilBackend = errors.New("repository: backend cannot be nil")
)
