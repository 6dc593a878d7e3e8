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

package repository

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jeremyhahn/go-repokey/pkg/crypto/cipherkey"
	"github.com/jeremyhahn/go-repokey/pkg/keyfile"
	"github.com/jeremyhahn/go-repokey/pkg/logging"
	"github.com/jeremyhahn/go-repokey/pkg/metrics"
	"github.com/jeremyhahn/go-repokey/pkg/storage"
)

// Backend is the storage a repository needs: content-addressed reads and
// writes plus id prefix lookup for key hints.
type Backend interface {
	storage.WriteBackend
	Find(t storage.FileType, prefix string) (storage.ID, error)
}

var _ Backend = (*storage.Namespace)(nil)

// Repository is an opened repository: the recovered master key, the key
// record it was opened with and the decrypted config.
type Repository struct {
	be      Backend
	keys    *keyfile.Manager
	logger  *logging.Logger
	key     cipherkey.Key
	keyID   storage.ID
	config  Config
	options options
}

type options struct {
	manager  *keyfile.Manager
	logger   *logging.Logger
	hostname string
	username string
	hint     string
}

// Option configures Init and Open.
type Option func(*options)

// WithManager sets the key record manager. The default uses recommended
// scrypt parameters.
func WithManager(m *keyfile.Manager) Option {
	return func(o *options) {
		if m != nil {
			o.manager = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHost records hostname and username on key records this repository writes.
func WithHost(hostname, username string) Option {
	return func(o *options) {
		o.hostname = hostname
		o.username = username
	}
}

// WithKeyHint restricts Open to the key record whose id starts with prefix.
func WithKeyHint(prefix string) Option {
	return func(o *options) {
		o.hint = strings.TrimSpace(prefix)
	}
}

func newOptions(opts []Option) options {
	o := options{
		manager: keyfile.NewManager(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Init creates a new repository: a random master key, the first key record
// sealed with password and the encrypted config.
func Init(be Backend, password []byte, opts ...Option) (repo *Repository, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpInit, metrics.StatusFor(err), time.Since(start).Seconds())
	}()

	if be == nil {
		return nil, ErrNilBackend
	}
	o := newOptions(opts)

	existing, err := be.List(storage.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list config: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrAlreadyInitialized
	}

	master, err := cipherkey.NewRandom()
	if err != nil {
		return nil, err
	}

	repo = &Repository{
		be:      be,
		keys:    o.manager,
		logger:  o.logger,
		key:     master,
		config:  newConfig(),
		options: o,
	}

	keyID, err := repo.saveKey(password)
	if err != nil {
		return nil, err
	}
	repo.keyID = keyID

	sealed, err := sealConfig(master, repo.config)
	if err != nil {
		return nil, err
	}
	if _, err := be.Save(storage.ConfigFile, sealed); err != nil {
		return nil, fmt.Errorf("repository: failed to save config: %w", err)
	}

	repo.logger.Infof("created repository %s with key %s", repo.config.ID, keyID.Str())
	return repo, nil
}

// Open recovers the master key with password and decrypts the config.
func Open(be Backend, password []byte, opts ...Option) (repo *Repository, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpOpen, metrics.StatusFor(err), time.Since(start).Seconds())
		if keyfile.IsWrongPassword(err) {
			metrics.RecordError(metrics.OpOpen, "wrong_password")
		}
	}()

	if be == nil {
		return nil, ErrNilBackend
	}
	o := newOptions(opts)

	var hint *storage.ID
	if o.hint != "" {
		id, err := be.Find(storage.KeyFile, o.hint)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrKeyNotFound, o.hint, err)
		}
		hint = &id
	}

	configs, err := be.List(storage.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list config: %w", err)
	}
	switch len(configs) {
	case 0:
		return nil, ErrNotInitialized
	case 1:
	default:
		return nil, fmt.Errorf("%w: found %d config files", ErrInvalidConfig, len(configs))
	}

	key, keyID, err := o.manager.FindKey(be, password, hint)
	if err != nil {
		return nil, err
	}

	data, err := be.ReadFull(storage.ConfigFile, configs[0])
	if err != nil {
		return nil, fmt.Errorf("repository: failed to read config: %w", err)
	}
	cfg, err := openConfig(key, data)
	if err != nil {
		return nil, err
	}

	o.logger.Debugf("opened repository %s with key %s", cfg.ID, keyID.Str())
	return &Repository{
		be:      be,
		keys:    o.manager,
		logger:  o.logger,
		key:     key,
		keyID:   keyID,
		config:  cfg,
		options: o,
	}, nil
}

// Config returns the decrypted repository config.
func (r *Repository) Config() Config { return r.config }

// Key returns the master key.
func (r *Repository) Key() cipherkey.Key { return r.key }

// KeyID returns the id of the key record the repository was opened with.
func (r *Repository) KeyID() storage.ID { return r.keyID }

// KeyInfo describes one stored key record without decrypting it.
type KeyInfo struct {
	ID      storage.ID
	Current bool
	keyfile.Info
}

// ListKeys returns the metadata of every key record ordered by creation time.
func (r *Repository) ListKeys() ([]KeyInfo, error) {
	ids, err := r.be.List(storage.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: listing keys: %w", keyfile.ErrReadingFromBackendFailed, err)
	}

	infos := make([]KeyInfo, 0, len(ids))
	for _, id := range ids {
		kf, err := keyfile.Load(r.be, id)
		if err != nil {
			return nil, err
		}
		infos = append(infos, KeyInfo{ID: id, Current: id == r.keyID, Info: kf.Info()})
	}
	slices.SortFunc(infos, func(a, b KeyInfo) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	metrics.SetStoredFiles(string(storage.KeyFile), len(infos))
	return infos, nil
}

// AddKey seals the master key under a new password and stores the record.
func (r *Repository) AddKey(password []byte) (id storage.ID, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpAddKey, metrics.StatusFor(err), time.Since(start).Seconds())
	}()

	id, err = r.saveKey(password)
	if err != nil {
		return storage.ID{}, err
	}
	r.logger.Infof("added key %s", id.Str())
	return id, nil
}

// RemoveKey deletes a key record. The record in use cannot be removed.
func (r *Repository) RemoveKey(id storage.ID) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpRemoveKey, metrics.StatusFor(err), time.Since(start).Seconds())
	}()

	if id == r.keyID {
		return ErrKeyInUse
	}
	if err := r.be.Remove(storage.KeyFile, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, id.Str())
		}
		return fmt.Errorf("repository: failed to remove key %s: %w", id.Str(), err)
	}
	r.logger.Infof("removed key %s", id.Str())
	return nil
}

// FindKeyID resolves a key record id prefix.
func (r *Repository) FindKeyID(prefix string) (storage.ID, error) {
	id, err := r.be.Find(storage.KeyFile, prefix)
	if err != nil {
		return storage.ID{}, fmt.Errorf("%w: %s: %w", ErrKeyNotFound, prefix, err)
	}
	return id, nil
}

// ChangePassword stores a record for the new password and removes the one in
// use. The repository continues with the new record.
func (r *Repository) ChangePassword(password []byte) (id storage.ID, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpChangePassword, metrics.StatusFor(err), time.Since(start).Seconds())
	}()

	id, err = r.saveKey(password)
	if err != nil {
		return storage.ID{}, err
	}

	old := r.keyID
	if err := r.be.Remove(storage.KeyFile, old); err != nil {
		return id, fmt.Errorf("repository: added key %s but failed to remove key %s: %w", id.Str(), old.Str(), err)
	}
	r.keyID = id
	r.logger.Infof("changed password: key %s replaces %s", id.Str(), old.Str())
	return id, nil
}

func (r *Repository) saveKey(password []byte) (storage.ID, error) {
	kf, err := r.keys.Generate(r.key, password, r.options.hostname, r.options.username, true)
	if err != nil {
		return storage.ID{}, err
	}
	data, err := kf.Encode()
	if err != nil {
		return storage.ID{}, err
	}
	id, err := r.be.Save(storage.KeyFile, data)
	if err != nil {
		return storage.ID{}, fmt.Errorf("repository: failed to save key: %w", err)
	}
	return id, nil
}
