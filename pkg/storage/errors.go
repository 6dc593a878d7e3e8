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

import "errors"

var (
	// ErrClosed is returned when attempting to use a closed storage.
	ErrClosed = errors.New("storage: closed")

	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists is returned when attempting to create a file that already exists.
	ErrAlreadyExists = errors.New("storage: already exists")

	// ErrInvalidID is returned when an ID is invalid or empty.
	ErrInvalidID = errors.New("storage: invalid ID")

	// ErrInvalidFileType is returned for an unknown file category.
	ErrInvalidFileType = errors.New("storage: invalid file type")

	// ErrAmbiguousID is returned when an ID prefix matches more than one file.
	ErrAmbiguousID = errors.New("storage: ambiguous ID prefix")

	// ErrReadOnly is returned when writing to a read-only backend.
	ErrReadOnly = errors.New("storage: read-only")
)
