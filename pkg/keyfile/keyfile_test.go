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
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKeyFile = `{
  "hostname": "backup-host",
  "username": "alice",
  "created": "2024-03-01T10:20:30.123456789+01:00",
  "kdf": "scrypt",
  "N": 32768,
  "r": 8,
  "p": 1,
  "data": "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=",
  "salt": "c2FsdA=="
}`

func TestDecode(t *testing.T) {
	kf, err := Decode([]byte(sampleKeyFile))
	require.NoError(t, err)

	require.NotNil(t, kf.Hostname)
	assert.Equal(t, "backup-host", *kf.Hostname)
	require.NotNil(t, kf.Username)
	assert.Equal(t, "alice", *kf.Username)
	require.NotNil(t, kf.Created)
	want := time.Date(2024, 3, 1, 9, 20, 30, 123456789, time.UTC)
	assert.True(t, want.Equal(*kf.Created))
	_, offset := kf.Created.Zone()
	assert.Equal(t, 3600, offset)

	assert.Equal(t, "scrypt", kf.KDF)
	assert.Equal(t, uint32(32768), kf.N)
	assert.Equal(t, uint32(8), kf.R)
	assert.Equal(t, uint32(1), kf.P)
	assert.Equal(t, []byte("salt"), kf.Salt)
	assert.Len(t, kf.Data, 32)

	params, err := kf.Params()
	require.NoError(t, err)
	assert.Equal(t, uint8(15), params.LogN())
}

func TestDecode_OptionalFieldsAbsent(t *testing.T) {
	kf, err := Decode([]byte(`{"kdf":"scrypt","N":2,"r":1,"p":1,"data":"","salt":""}`))
	require.NoError(t, err)
	assert.Nil(t, kf.Hostname)
	assert.Nil(t, kf.Username)
	assert.Nil(t, kf.Created)

	info := kf.Info()
	assert.Empty(t, info.Hostname)
	assert.Empty(t, info.Username)
	assert.True(t, info.Created.IsZero())
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json`},
		{"unknown field", `{"kdf":"scrypt","N":2,"r":1,"p":1,"data":"","salt":"","extra":1}`},
		{"trailing data", `{"kdf":"scrypt","N":2,"r":1,"p":1,"data":"","salt":""} {}`},
		{"unsupported kdf", `{"kdf":"argon2","N":2,"r":1,"p":1,"data":"","salt":""}`},
		{"missing kdf", `{"N":2,"r":1,"p":1,"data":"","salt":""}`},
		{"bad base64", `{"kdf":"scrypt","N":2,"r":1,"p":1,"data":"!!!","salt":""}`},
		{"negative N", `{"kdf":"scrypt","N":-2,"r":1,"p":1,"data":"","salt":""}`},
		{"field case differs", `{"kdf":"scrypt","N":2,"R":1,"P":1,"DATA":"","Salt":""}`},
		{"lowercase n", `{"kdf":"scrypt","N":2,"n":1024,"r":1,"p":1,"data":"","salt":""}`},
		{"duplicate field", `{"kdf":"scrypt","N":2,"N":1024,"r":1,"p":1,"data":"","salt":""}`},
		{"not an object", `["kdf","scrypt"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kf, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, ErrDeserializationFailed)
			assert.Nil(t, kf)
		})
	}
}

func TestEncode_RoundTripPreservesMetadata(t *testing.T) {
	kf, err := Decode([]byte(sampleKeyFile))
	require.NoError(t, err)

	encoded, err := kf.Encode()
	require.NoError(t, err)

	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, *kf.Hostname, *again.Hostname)
	assert.Equal(t, *kf.Username, *again.Username)
	assert.True(t, kf.Created.Equal(*again.Created))
	assert.Equal(t, kf.Created.Format(time.RFC3339Nano), again.Created.Format(time.RFC3339Nano))
	assert.Equal(t, kf.Data, again.Data)
	assert.Equal(t, kf.Salt, again.Salt)

	reencoded, err := again.Encode()
	require.NoError(t, err)
	assert.Equal(t, encoded, reencoded)
}

func TestEncode_UnsetFieldsOmitted(t *testing.T) {
	kf := &KeyFile{KDF: "scrypt", N: 2, R: 1, P: 1, Data: []byte{1}, Salt: []byte{2}}

	encoded, err := kf.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "hostname")
	assert.NotContains(t, string(encoded), "username")
	assert.NotContains(t, string(encoded), "created")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(encoded, &raw))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1}), raw["data"])
	assert.Equal(t, float64(2), raw["N"])

	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Nil(t, again.Hostname)
	assert.Nil(t, again.Username)
	assert.Nil(t, again.Created)
}

func TestParams_Invalid(t *testing.T) {
	for _, n := range []uint32{0, 1, 3, 1000} {
		kf := &KeyFile{KDF: "scrypt", N: n, R: 8, P: 1}
		_, err := kf.Params()
		assert.ErrorIs(t, err, ErrInvalidParameters, "N=%d", n)
	}

	kf := &KeyFile{KDF: "pbkdf2", N: 1024, R: 8, P: 1}
	_, err := kf.Params()
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestIsWrongPassword(t *testing.T) {
	assert.True(t, IsWrongPassword(ErrAuthenticationFailed))
	assert.True(t, IsWrongPassword(ErrNoSuitableKeyFound))
	assert.False(t, IsWrongPassword(ErrDeserializationFailed))
	assert.False(t, IsWrongPassword(ErrInvalidParameters))
	assert.False(t, IsWrongPassword(nil))
	assert.True(t, strings.HasPrefix(ErrNoSuitableKeyFound.Error(), "keyfile:"))
}
