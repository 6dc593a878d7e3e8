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

// Package kdf derives symmetric key material from passwords using scrypt.
//
// The parameters follow the scrypt conventions: N is the CPU/memory cost (stored
// in its linear form, always an exact power of two), r the block size and p the
// parallelization factor. Derivation always yields KeySize bytes.
package kdf

import (
	"errors"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/scrypt"
)

const (
	// Name identifies this derivation scheme in persisted key records.
	Name = "scrypt"

	// KeySize is the length of every derived key in bytes.
	KeySize = 64

	// SaltSize is the length of salts generated for new key records.
	SaltSize = 64

	// MaxMemory bounds the working set a parameter set may demand (4 GiB).
	MaxMemory = uint64(1) << 32

	// RecommendedLogN, RecommendedR and RecommendedP are used for new key records.
	RecommendedLogN = 17
	RecommendedR    = 8
	RecommendedP    = 1
)

var (
	// ErrInvalidParameters is returned when N, r or p are out of range.
	ErrInvalidParameters = errors.New("kdf: invalid scrypt parameters")

	// ErrOutputLengthInvalid is returned when derivation cannot produce KeySize bytes.
	ErrOutputLengthInvalid = errors.New("kdf: invalid output length")
)

// Params is a validated scrypt parameter set.
type Params struct {
	logN uint8
	r    uint32
	p    uint32
}

// NewParams validates logN, r and p and returns the parameter set.
func NewParams(logN uint8, r, p uint32) (Params, error) {
	if logN == 0 || logN >= 32 {
		return Params{}, fmt.Errorf("%w: log2(N)=%d not in [1, 32)", ErrInvalidParameters, logN)
	}
	if r == 0 {
		return Params{}, fmt.Errorf("%w: r must be positive", ErrInvalidParameters)
	}
	if p == 0 {
		return Params{}, fmt.Errorf("%w: p must be positive", ErrInvalidParameters)
	}
	// N must be smaller than 2^(128*r/8)
	if r < 4 && uint32(logN) >= 16*r {
		return Params{}, fmt.Errorf("%w: log2(N)=%d too large for r=%d", ErrInvalidParameters, logN, r)
	}
	if uint64(r)*uint64(p) >= 1<<30 {
		return Params{}, fmt.Errorf("%w: r*p=%d exceeds 2^30", ErrInvalidParameters, uint64(r)*uint64(p))
	}
	if mem := memory(logN, r, p); mem > MaxMemory {
		return Params{}, fmt.Errorf("%w: parameters require %d bytes of memory", ErrInvalidParameters, mem)
	}
	return Params{logN: logN, r: r, p: p}, nil
}

// Recommended returns the parameters used when generating new key records.
func Recommended() Params {
	return Params{logN: RecommendedLogN, r: RecommendedR, p: RecommendedP}
}

// FromLinear validates parameters with N given in its linear form.
func FromLinear(n, r, p uint32) (Params, error) {
	logN, err := Log2(n)
	if err != nil {
		return Params{}, err
	}
	return NewParams(logN, r, p)
}

// LogN returns log2(N).
func (p Params) LogN() uint8 { return p.logN }

// N returns the linear cost factor 2^logN.
func (p Params) N() uint32 { return uint32(1) << p.logN }

// R returns the block size.
func (p Params) R() uint32 { return p.r }

// P returns the parallelization factor.
func (p Params) P() uint32 { return p.p }

// Memory returns the approximate number of bytes a derivation allocates.
func (p Params) Memory() uint64 { return memory(p.logN, p.r, p.p) }

func memory(logN uint8, r, p uint32) uint64 {
	n := uint64(1) << logN
	return 128*uint64(r)*n + 128*uint64(r)*uint64(p)
}

// Log2 converts a linear N into its exponent. N must be an exact power of two
// greater than one; anything else is rejected rather than truncated.
func Log2(n uint32) (uint8, error) {
	if n == 0 {
		return 0, fmt.Errorf("%w: N must not be zero", ErrInvalidParameters)
	}
	if n&(n-1) != 0 {
		return 0, fmt.Errorf("%w: N=%d is not a power of two", ErrInvalidParameters, n)
	}
	k := 32 - bits.LeadingZeros32(n) - 1
	if k < 1 {
		return 0, fmt.Errorf("%w: N=%d must be at least 2", ErrInvalidParameters, n)
	}
	return uint8(k), nil
}

// Key runs scrypt with a validated parameter set.
func Key(password, salt []byte, params Params) ([]byte, error) {
	if params.logN == 0 {
		return nil, fmt.Errorf("%w: uninitialized parameters", ErrInvalidParameters)
	}
	key, err := scrypt.Key(password, salt, int(params.N()), int(params.r), int(params.p), KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrOutputLengthInvalid, len(key), KeySize)
	}
	return key, nil
}

// Derive validates the linear parameters N, r and p and derives a KeySize-byte key.
func Derive(password, salt []byte, n, r, p uint32) ([]byte, error) {
	params, err := FromLinear(n, r, p)
	if err != nil {
		return nil, err
	}
	return Key(password, salt, params)
}
