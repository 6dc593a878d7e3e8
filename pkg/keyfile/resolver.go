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
	"fmt"
	"iter"
	"time"

	"github.com/jeremyhahn/go-repokey/pkg/crypto/cipherkey"
	"github.com/jeremyhahn/go-repokey/pkg/metrics"
	"github.com/jeremyhahn/go-repokey/pkg/storage"
)

// Load reads and decodes the key file id from the backend.
func Load(be storage.ReadBackend, id storage.ID) (*KeyFile, error) {
	data, err := be.ReadFull(storage.KeyFile, id)
	if err != nil {
		return nil, fmt.Errorf("%w: key %s: %w", ErrReadingFromBackendFailed, id.Str(), err)
	}
	kf, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", id.Str(), err)
	}
	return kf, nil
}

// FromBackend loads the key file id and recovers the master key with password.
func (m *Manager) FromBackend(be storage.ReadBackend, id storage.ID, password []byte) (cipherkey.Key, error) {
	kf, err := Load(be, id)
	if err != nil {
		return nil, err
	}
	key, err := m.KeyFromPassword(kf, password)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", id.Str(), err)
	}
	return key, nil
}

// Attempt is the outcome of trying password against one key file.
type Attempt struct {
	ID  storage.ID
	Key cipherkey.Key
	Err error
}

// Attempts tries password against each id in order. The sequence is lazy:
// a key is only derived when the consumer asks for the next attempt, so
// stopping after the first success skips the remaining derivations.
func (m *Manager) Attempts(be storage.ReadBackend, ids []storage.ID, password []byte) iter.Seq[Attempt] {
	return func(yield func(Attempt) bool) {
		for _, id := range ids {
			key, err := m.FromBackend(be, id, password)
			if !yield(Attempt{ID: id, Key: key, Err: err}) {
				return
			}
		}
	}
}

// FindKey returns the master key and the ID of the key file that password
// opens. With a hint only that key file is tried and its error is returned
// as is. Without a hint every key file is tried in backend listing order and
// the first success wins; if none matches ErrNoSuitableKeyFound is returned.
func (m *Manager) FindKey(be storage.ReadBackend, password []byte, hint *storage.ID) (key cipherkey.Key, id storage.ID, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpResolve, metrics.StatusFor(err), time.Since(start).Seconds())
	}()

	if hint != nil {
		key, err := m.FromBackend(be, *hint, password)
		recordAttempt(err)
		if err != nil {
			return nil, storage.ID{}, err
		}
		return key, *hint, nil
	}

	ids, err := be.List(storage.KeyFile)
	if err != nil {
		return nil, storage.ID{}, fmt.Errorf("%w: listing keys: %w", ErrReadingFromBackendFailed, err)
	}

	for attempt := range m.Attempts(be, ids, password) {
		recordAttempt(attempt.Err)
		if attempt.Err == nil {
			m.logger.Debug("key file matched", "id", attempt.ID.Str())
			return attempt.Key, attempt.ID, nil
		}
		m.logger.Debug("skipping key file", "id", attempt.ID.Str(), "error", attempt.Err)
	}

	return nil, storage.ID{}, fmt.Errorf("%w: tried %d key files", ErrNoSuitableKeyFound, len(ids))
}

// Resolve returns the master key that password unlocks in be.
func (m *Manager) Resolve(be storage.ReadBackend, password []byte, hint *storage.ID) (cipherkey.Key, error) {
	key, _, err := m.FindKey(be, password, hint)
	return key, err
}

func recordAttempt(err error) {
	switch {
	case err == nil:
		metrics.RecordCandidate(metrics.ResultMatched)
	case errors.Is(err, ErrAuthenticationFailed):
		metrics.RecordCandidate(metrics.ResultRejected)
	default:
		metrics.RecordCandidate(metrics.ResultFailed)
	}
}

// FindKey searches be with the default Manager.
func FindKey(be storage.ReadBackend, password []byte, hint *storage.ID) (cipherkey.Key, storage.ID, error) {
	return defaultManager.FindKey(be, password, hint)
}

// Resolve searches be with the default Manager.
func Resolve(be storage.ReadBackend, password []byte, hint *storage.ID) (cipherkey.Key, error) {
	return defaultManager.Resolve(be, password, hint)
}
