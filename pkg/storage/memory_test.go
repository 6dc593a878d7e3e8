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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_PutAndGet(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Put("keys/abc", []byte("record"), nil))

	result, err := backend.Get("keys/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), result)
	assert.Equal(t, 1, backend.Len())
}

func TestMemoryBackend_Get_NotFound(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	_, err := backend.Get("nonexistent-key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBackend_Put_EmptyKey(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	assert.ErrorIs(t, backend.Put("", []byte("x"), nil), ErrInvalidID)
}

func TestMemoryBackend_Get_ReturnsCopy(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Put("k", []byte("original"), nil))

	first, err := backend.Get("k")
	require.NoError(t, err)
	first[0] = 'X'

	second, err := backend.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), second)
}

func TestMemoryBackend_Put_StoresCopy(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	value := []byte("original")
	require.NoError(t, backend.Put("k", value, nil))
	value[0] = 'X'

	stored, err := backend.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), stored)
}

func TestMemoryBackend_Delete(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Put("k", []byte("v"), nil))
	require.NoError(t, backend.Delete("k"))

	exists, err := backend.Exists("k")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, backend.Delete("k"), ErrNotFound)
}

func TestMemoryBackend_List(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Put("keys/a", []byte("1"), nil))
	require.NoError(t, backend.Put("keys/b", []byte("2"), nil))
	require.NoError(t, backend.Put("config/c", []byte("3"), nil))

	keys, err := backend.List("keys/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"keys/a", "keys/b"}, keys)

	all, err := backend.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := backend.List("locks/")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryBackend_OperationsAfterClose(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Put("k", []byte("v"), nil))
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())

	_, err := backend.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, backend.Put("k", []byte("v"), nil), ErrClosed)
	assert.ErrorIs(t, backend.Delete("k"), ErrClosed)
	_, err = backend.List("")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.Exists("k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBackend_Concurrent(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("keys/%d", i)
			assert.NoError(t, backend.Put(key, []byte(key), nil))
			value, err := backend.Get(key)
			assert.NoError(t, err)
			assert.Equal(t, []byte(key), value)
		}(i)
	}
	wg.Wait()

	keys, err := backend.List("keys/")
	require.NoError(t, err)
	assert.Len(t, keys, 50)
}

func TestReadOnly(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Put("k", []byte("v"), nil))

	ro := ReadOnly(backend)
	value, err := ro.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	assert.ErrorIs(t, ro.Put("k2", []byte("v"), nil), ErrReadOnly)
	assert.ErrorIs(t, ro.Delete("k"), ErrReadOnly)

	exists, err := backend.Exists("k")
	require.NoError(t, err)
	assert.True(t, exists)
}
