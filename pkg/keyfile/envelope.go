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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-repokey/pkg/crypto/cipherkey"
)

// macKey holds the Poly1305-AES sub-keys.
type macKey struct {
	K []byte `json:"k"`
	R []byte `json:"r"`
}

// masterKey is the plaintext sealed inside KeyFile.Data. It only exists
// between encoding and sealing, or between opening and decoding.
type masterKey struct {
	MAC     macKey `json:"mac"`
	Encrypt []byte `json:"encrypt"`
}

func newMasterKey(key cipherkey.Key) *masterKey {
	encrypt, k, r := key.Keys()
	return &masterKey{
		MAC:     macKey{K: k, R: r},
		Encrypt: encrypt,
	}
}

func (mk *masterKey) encode() ([]byte, error) {
	data, err := json.Marshal(mk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

var masterKeyFields = map[string]bool{"mac": true, "encrypt": true}

func decodeMasterKey(data []byte) (*masterKey, error) {
	if err := checkFields(data, masterKeyFields); err != nil {
		return nil, fmt.Errorf("%w: master key: %v", ErrDeserializationFailed, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var mk masterKey
	if err := dec.Decode(&mk); err != nil {
		return nil, fmt.Errorf("%w: master key: %v", ErrDeserializationFailed, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after master key", ErrDeserializationFailed)
	}
	return &mk, nil
}

func (mk *masterKey) key() (cipherkey.Key, error) {
	key, err := cipherkey.FromKeys(mk.Encrypt, mk.MAC.K, mk.MAC.R)
	if err != nil {
		return nil, fmt.Errorf("%w: master key: %v", ErrDeserializationFailed, err)
	}
	return key, nil
}

func (mk *masterKey) wipe() {
	for _, b := range [][]byte{mk.Encrypt, mk.MAC.K, mk.MAC.R} {
		for i := range b {
			b[i] = 0
		}
	}
}
