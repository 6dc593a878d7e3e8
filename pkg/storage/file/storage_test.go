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

package file

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-repokey/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs, err := New(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestNew(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	fs, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, root, fs.Root())

	for _, ft := range storage.FileTypes {
		info, err := os.Stat(filepath.Join(root, string(ft)))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	_, err = New("")
	assert.Error(t, err)
}

func TestPutGet(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.Put("config/abc", []byte("value"), nil))
	data, err := fs.Get("config/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data)

	// overwrite
	require.NoError(t, fs.Put("config/abc", []byte("other"), nil))
	data, err = fs.Get("config/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), data)
}

func TestGetNotFound(t *testing.T) {
	fs := newTestStorage(t)

	_, err := fs.Get("keys/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.Put("keys/abc", []byte("value"), nil))
	require.NoError(t, fs.Delete("keys/abc"))

	exists, err := fs.Exists("keys/abc")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, fs.Delete("keys/abc"), storage.ErrNotFound)
}

func TestList(t *testing.T) {
	fs := newTestStorage(t)

	for _, k := range []string{"keys/c", "keys/a", "keys/b", "config/x"} {
		require.NoError(t, fs.Put(k, []byte(k), nil))
	}
	// leftover from an interrupted write
	require.NoError(t, os.WriteFile(filepath.Join(fs.Root(), "keys", tempPrefix+"123"), []byte("x"), 0600))

	keys, err := fs.List("keys/")
	require.NoError(t, err)
	assert.Equal(t, []string{"keys/a", "keys/b", "keys/c"}, keys)

	all, err := fs.List("")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestList_StaysInTypeDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs unix permissions enforced")
	}
	fs := newTestStorage(t)

	require.NoError(t, fs.Put("keys/a", []byte("a"), nil))
	require.NoError(t, fs.Put("data/pack", []byte("pack"), nil))

	dataDir := filepath.Join(fs.Root(), "data")
	require.NoError(t, os.Chmod(dataDir, 0))
	t.Cleanup(func() { _ = os.Chmod(dataDir, 0700) })

	keys, err := fs.List("keys/")
	require.NoError(t, err)
	assert.Equal(t, []string{"keys/a"}, keys)

	_, err = fs.List("")
	assert.Error(t, err)
}

func TestList_MissingTypeDirectory(t *testing.T) {
	fs := newTestStorage(t)
	require.NoError(t, fs.Put("keys/a", []byte("a"), nil))

	keys, err := fs.List("other/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = fs.List("../keys/")
	assert.ErrorIs(t, err, storage.ErrInvalidID)
}

func TestFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	fs := newTestStorage(t)

	require.NoError(t, fs.Put("keys/abc", []byte("k"), nil))
	require.NoError(t, fs.Put("config/abc", []byte("c"), nil))
	require.NoError(t, fs.Put("locks/abc", []byte("l"), &storage.Options{Permissions: 0640}))

	info, err := os.Stat(filepath.Join(fs.Root(), "keys", "abc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(keysFilePerms), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(fs.Root(), "config", "abc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(defaultPerms), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(fs.Root(), "locks", "abc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	// read-only key files can still be replaced
	require.NoError(t, fs.Put("keys/abc", []byte("k2"), nil))
	data, err := fs.Get("keys/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("k2"), data)
}

func TestValidateStorageKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"keys/abc", true},
		{"config/a.b", true},
		{"keys/..abc", true},
		{"", false},
		{"keys/\x00", false},
		{"/etc/passwd", false},
		{"../outside", false},
		{"keys/../../outside", false},
		{"keys/..", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.key), func(t *testing.T) {
			err := validateStorageKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestInvalidKeys(t *testing.T) {
	fs := newTestStorage(t)

	_, err := fs.Get("../secret")
	assert.ErrorIs(t, err, storage.ErrInvalidID)
	assert.ErrorIs(t, fs.Put("../secret", []byte("x"), nil), storage.ErrInvalidID)
	assert.ErrorIs(t, fs.Delete("../secret"), storage.ErrInvalidID)
	_, err = fs.Exists("")
	assert.ErrorIs(t, err, storage.ErrInvalidID)
}

func TestConcurrentAccess(t *testing.T) {
	fs := newTestStorage(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("data/%02d", i)
			assert.NoError(t, fs.Put(key, []byte(key), nil))
			value, err := fs.Get(key)
			assert.NoError(t, err)
			assert.Equal(t, []byte(key), value)
		}(i)
	}
	wg.Wait()

	keys, err := fs.List("data/")
	require.NoError(t, err)
	assert.Len(t, keys, 20)
}

func TestNamespaceOnFileStorage(t *testing.T) {
	ns := storage.NewNamespace(newTestStorage(t))

	id, err := ns.Save(storage.KeyFile, []byte(`{"kdf":"scrypt"}`))
	require.NoError(t, err)

	ids, err := ns.List(storage.KeyFile)
	require.NoError(t, err)
	assert.Equal(t, []storage.ID{id}, ids)

	data, err := ns.ReadFull(storage.KeyFile, id)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"kdf":"scrypt"}`), data)
}
