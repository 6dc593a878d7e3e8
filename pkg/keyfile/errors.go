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

package keyfile

import (
	"errors"

	"github.com/jeremyhahn/go-repokey/pkg/crypto/cipherkey"
	"github.com/jeremyhahn/go-repokey/pkg/crypto/kdf"
)

var (
	// ErrInvalidParameters is returned when stored or requested scrypt
	// parameters are out of range.
	ErrInvalidParameters = kdf.ErrInvalidParameters

	// ErrOutputLengthInvalid is returned when key derivation cannot produce
	// the required output size.
	ErrOutputLengthInvalid = kdf.ErrOutputLengthInvalid

	// ErrAuthenticationFailed is returned when sealed key data does not verify
	// under the derived key: a wrong password or a corrupted key file.
	ErrAuthenticationFailed = cipherkey.ErrAuthenticationFailed

	// ErrDeserializationFailed is returned when a key file or decrypted master
	// key does not parse.
	ErrDeserializationFailed = errors.New("keyfile: deserialization failed")

	// ErrSerializationFailed is returned when a master key cannot be encoded
	// before sealing.
	ErrSerializationFailed = errors.New("keyfile: serialization failed")

	// ErrReadingFromBackendFailed is returned when the backend cannot supply a
	// key file or the key file listing.
	ErrReadingFromBackendFailed = errors.New("keyfile: reading from backend failed")

	// ErrNoSuitableKeyFound is returned when no stored key file opens with the
	// given password.
	ErrNoSuitableKeyFound = errors.New("keyfile: no suitable key found")
)

// IsWrongPassword reports whether err is the ordinary "password does not
// match" outcome rather than a structural problem with the repository.
func IsWrongPassword(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) || errors.Is(err, ErrNoSuitableKeyFound)
}
