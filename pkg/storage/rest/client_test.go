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

package rest_test

import (
	"net/http/httptest"
	"testing"

	server "github.com/jeremyhahn/go-repokey/internal/rest"
	"github.com/jeremyhahn/go-repokey/internal/testutil"
	"github.com/jeremyhahn/go-repokey/pkg/crypto/cipherkey"
	"github.com/jeremyhahn/go-repokey/pkg/keyfile"
	"github.com/jeremyhahn/go-repokey/pkg/repository"
	"github.com/jeremyhahn/go-repokey/pkg/storage"
	"github.com/jeremyhahn/go-repokey/pkg/storage/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, readOnly bool) (*rest.Backend, *storage.MemoryBackend) {
	t.Helper()
	mem := storage.NewMemory()
	srv, err := server.NewServer(&server.Config{Backend: mem, ReadOnly: readOnly})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	be, err := rest.New(&rest.Config{URL: ts.URL + "/"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Close() })
	return be, mem
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := rest.New(nil)
	assert.Error(t, err)
	_, err = rest.New(&rest.Config{})
	assert.Error(t, err)
}

func TestBackend_PutGetDelete(t *testing.T) {
	be, mem := newTestBackend(t, false)

	data := []byte("sealed key")
	key := storage.Path(storage.KeyFile, storage.Hash(data))

	require.NoError(t, be.Put(key, data, nil))
	stored, err := mem.Get(key)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	got, err := be.Get(key)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := be.Exists(key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, be.Delete(key))
	exists, err = be.Exists(key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = be.Get(key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, be.Delete(key), storage.ErrNotFound)
}

func TestBackend_InvalidKeys(t *testing.T) {
	be, _ := newTestBackend(t, false)

	for _, key := range []string{"", "keys", "keys/", "secrets/abc", "keys/a/b"} {
		_, err := be.Get(key)
		assert.Error(t, err, key)
	}
	_, err := be.Get("keys/abc")
	assert.ErrorIs(t, err, storage.ErrInvalidID)

	err = be.Put(storage.Path(storage.KeyFile, storage.Hash([]byte("x"))), []byte("y"), nil)
	assert.ErrorIs(t, err, rest.ErrRequestFailed)
}

func TestBackend_List(t *testing.T) {
	be, mem := newTestBackend(t, false)

	keyData := []byte("k")
	snapData := []byte("s")
	keyPath := storage.Path(storage.KeyFile, storage.Hash(keyData))
	snapPath := storage.Path(storage.SnapshotFile, storage.Hash(snapData))
	require.NoError(t, mem.Put(keyPath, keyData, nil))
	require.NoError(t, mem.Put(snapPath, snapData, nil))

	keys, err := be.List("keys/")
	require.NoError(t, err)
	assert.Equal(t, []string{keyPath}, keys)

	all, err := be.List("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{keyPath, snapPath}, all)

	none, err := be.List(keyPath[:len("keys/")+4] + "zz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBackend_ReadOnly(t *testing.T) {
	be, mem := newTestBackend(t, true)

	data := []byte("k")
	key := storage.Path(storage.KeyFile, storage.Hash(data))
	require.NoError(t, mem.Put(key, data, nil))

	assert.ErrorIs(t, be.Put(key, data, nil), storage.ErrReadOnly)
	assert.ErrorIs(t, be.Delete(key), storage.ErrReadOnly)

	got, err := be.Get(key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestBackend_Closed(t *testing.T) {
	be, _ := newTestBackend(t, false)
	require.NoError(t, be.Close())

	_, err := be.Get(storage.Path(storage.KeyFile, storage.Hash([]byte("k"))))
	assert.ErrorIs(t, err, storage.ErrClosed)
	_, err = be.List("")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestBackend_ResolveKeyRemotely(t *testing.T) {
	be, _ := newTestBackend(t, false)
	ns := storage.NewNamespace(be)
	withManager := repository.WithManager(testutil.NewKeyManager(t))

	created, err := repository.Init(ns, []byte("remote secret"), withManager)
	require.NoError(t, err)
	_, err = created.AddKey([]byte("second"))
	require.NoError(t, err)

	opened, err := repository.Open(ns, []byte("second"), withManager)
	require.NoError(t, err)
	assert.Equal(t, created.Config().ID, opened.Config().ID)

	master, ok := created.Key().(*cipherkey.AESPoly1305Key)
	require.True(t, ok)
	assert.True(t, master.Equal(opened.Key()))

	_, err = repository.Open(ns, []byte("wrong"), withManager)
	assert.ErrorIs(t, err, keyfile.ErrNoSuitableKeyFound)
}
