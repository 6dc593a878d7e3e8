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

// Package password reads repository passwords from files, the environment
// or an interactive terminal and holds them in zeroable memory.
package password

import (
	"crypto/subtle"
	"errors"
)

var (
	// ErrEmptyPassword is returned for a zero-length password.
	ErrEmptyPassword = errors.New("password: empty password")

	// ErrPasswordZeroed is returned when a cleared password is used.
	ErrPasswordZeroed = errors.New("password: already cleared")

	// ErrMismatch is returned when a confirmation does not match.
	ErrMismatch = errors.New("password: entries do not match")
)

// Password is a secret that can be wiped once it is no longer needed.
type Password interface {
	String() (string, error)
	Bytes() []byte
	Clear()
}

// ClearPassword owns a private copy of a password until Clear.
type ClearPassword struct {
	b []byte
}

var _ Password = (*ClearPassword)(nil)

// NewClearPassword copies password.
func NewClearPassword(password []byte) (*ClearPassword, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	return &ClearPassword{b: clone(password)}, nil
}

// String returns the password as a string.
func (p *ClearPassword) String() (string, error) {
	if p.b == nil {
		return "", ErrPasswordZeroed
	}
	return string(p.b), nil
}

// Bytes returns a copy the caller should zero, or nil after Clear.
func (p *ClearPassword) Bytes() []byte {
	if p.b == nil {
		return nil
	}
	return clone(p.b)
}

// Clear overwrites the password. Later calls are no-ops.
func (p *ClearPassword) Clear() {
	zero(p.b)
	p.b = nil
}

// Equal compares two passwords in constant time.
func Equal(a, b Password) (bool, error) {
	x, y := a.Bytes(), b.Bytes()
	defer zero(x)
	defer zero(y)
	if x == nil || y == nil {
		return false, ErrPasswordZeroed
	}
	return subtle.ConstantTimeCompare(x, y) == 1, nil
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func zero(b []byte) {
	clear(b)
}
