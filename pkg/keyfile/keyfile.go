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

// Package keyfile protects a repository master key behind passwords.
//
// Each key file stores scrypt parameters, a random salt and the master key
// sealed under the key derived from one password. A repository may hold any
// number of key files; opening it means finding one that the password unlocks.
package keyfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-repokey/pkg/crypto/kdf"
)

// KeyFile is the persisted form of one password-protected copy of the master key.
// Key files are never modified after creation.
type KeyFile struct {
	Hostname *string    `json:"hostname,omitempty"`
	Username *string    `json:"username,omitempty"`
	Created  *time.Time `json:"created,omitempty"`

	// KDF names the derivation function; only "scrypt" is supported.
	KDF string `json:"kdf"`

	// N is the linear scrypt cost, always a power of two.
	N uint32 `json:"N"`
	R uint32 `json:"r"`
	P uint32 `json:"p"`

	// Data is the sealed master key.
	Data []byte `json:"data"`

	Salt []byte `json:"salt"`
}

// Decode parses a key file strictly: unknown fields, trailing data and
// unsupported KDF names are rejected.
func Decode(data []byte) (*KeyFile, error) {
	if err := checkFields(data, keyFileFields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var kf KeyFile
	if err := dec.Decode(&kf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after key file", ErrDeserializationFailed)
	}
	if kf.KDF != kdf.Name {
		return nil, fmt.Errorf("%w: unsupported kdf %q", ErrDeserializationFailed, kf.KDF)
	}
	return &kf, nil
}

// keyFileFields are the exact member names of a key file. encoding/json
// matches names case-insensitively, so they are checked before decoding.
var keyFileFields = map[string]bool{
	"hostname": true,
	"username": true,
	"created":  true,
	"kdf":      true,
	"N":        true,
	"r":        true,
	"p":        true,
	"data":     true,
	"salt":     true,
}

// checkFields rejects top-level members of the JSON object in data whose
// names are not in names, and members that appear more than once.
func checkFields(data []byte, names map[string]bool) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return errors.New("not a JSON object")
	}

	seen := make(map[string]bool, len(names))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		if !names[name] {
			return fmt.Errorf("unknown field %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = true

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
	}
	return nil
}

// Encode returns the JSON form stored in the repository.
func (kf *KeyFile) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// Params validates the stored scrypt parameters.
func (kf *KeyFile) Params() (kdf.Params, error) {
	if kf.KDF != kdf.Name {
		return kdf.Params{}, fmt.Errorf("%w: unsupported kdf %q", ErrInvalidParameters, kf.KDF)
	}
	return kdf.FromLinear(kf.N, kf.R, kf.P)
}

// Info is the password-free metadata of a key file.
type Info struct {
	Hostname string
	Username string
	Created  time.Time
	N, R, P  uint32
}

// Info returns the provenance metadata; unset fields are zero values.
func (kf *KeyFile) Info() Info {
	info := Info{N: kf.N, R: kf.R, P: kf.P}
	if kf.Hostname != nil {
		info.Hostname = *kf.Hostname
	}
	if kf.Username != nil {
		info.Username = *kf.Username
	}
	if kf.Created != nil {
		info.Created = *kf.Created
	}
	return info
}
