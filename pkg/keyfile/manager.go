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
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-repokey/internal/kdfcost"
	"github.com/jeremyhahn/go-repokey/pkg/crypto/cipherkey"
	"github.com/jeremyhahn/go-repokey/pkg/crypto/kdf"
	"github.com/jeremyhahn/go-repokey/pkg/logging"
	"github.com/jeremyhahn/go-repokey/pkg/metrics"
)

// Manager creates key files and recovers master keys from them.
// It holds no mutable state and is safe for concurrent use.
type Manager struct {
	params kdf.Params
	rand   io.Reader
	now    func() time.Time
	logger *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRandom sets the entropy source for salts.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		if r != nil {
			m.rand = r
		}
	}
}

// WithClock sets the time source for the created timestamp.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithCost replaces the recommended scrypt parameters. Costs can only be
// built inside this module, where tests use them to keep derivation cheap.
func WithCost(c kdfcost.Cost) Option {
	return func(m *Manager) {
		if params, ok := c.Params(); ok {
			m.params = params
		}
	}
}

// NewManager returns a Manager that generates key files with the
// recommended scrypt parameters.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		params: kdf.Recommended(),
		rand:   rand.Reader,
		now:    time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate seals key under a fresh salt and the key derived from password.
// Empty hostname or username leave the field unset; withCreated records the
// current local time.
func (m *Manager) Generate(key cipherkey.Key, password []byte, hostname, username string, withCreated bool) (kf *KeyFile, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpGenerate, metrics.StatusFor(err), time.Since(start).Seconds())
	}()

	salt := make([]byte, kdf.SaltSize)
	if _, err := io.ReadFull(m.rand, salt); err != nil {
		return nil, fmt.Errorf("keyfile: failed to generate salt: %w", err)
	}

	derived, err := m.derive(password, salt, m.params)
	if err != nil {
		return nil, err
	}

	mk := newMasterKey(key)
	defer mk.wipe()
	plaintext, err := mk.encode()
	if err != nil {
		return nil, err
	}
	defer wipe(plaintext)

	data, err := derived.EncryptData(plaintext)
	if err != nil {
		return nil, fmt.Errorf("keyfile: failed to seal master key: %w", err)
	}

	kf = &KeyFile{
		KDF:  kdf.Name,
		N:    m.params.N(),
		R:    m.params.R(),
		P:    m.params.P(),
		Data: data,
		Salt: salt,
	}
	if hostname != "" {
		kf.Hostname = &hostname
	}
	if username != "" {
		kf.Username = &username
	}
	if withCreated {
		created := m.now().Local().Round(0)
		kf.Created = &created
	}

	m.logger.Debug("generated key file", "N", kf.N, "r", kf.R, "p", kf.P)
	return kf, nil
}

// KDFKey derives the sealing key for kf from password using the stored
// salt and parameters.
func (m *Manager) KDFKey(kf *KeyFile, password []byte) (cipherkey.Key, error) {
	params, err := kf.Params()
	if err != nil {
		return nil, err
	}
	return m.derive(password, kf.Salt, params)
}

// KeyFromData opens kf.Data with a derived key and rebuilds the master key.
// A wrong derived key fails with ErrAuthenticationFailed.
func (m *Manager) KeyFromData(kf *KeyFile, derived cipherkey.Key) (cipherkey.Key, error) {
	plaintext, err := derived.DecryptData(kf.Data)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	defer wipe(plaintext)

	mk, err := decodeMasterKey(plaintext)
	if err != nil {
		return nil, err
	}
	defer mk.wipe()
	return mk.key()
}

// KeyFromPassword recovers the master key sealed in kf.
func (m *Manager) KeyFromPassword(kf *KeyFile, password []byte) (key cipherkey.Key, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation(metrics.OpRecover, metrics.StatusFor(err), time.Since(start).Seconds())
	}()

	derived, err := m.KDFKey(kf, password)
	if err != nil {
		return nil, err
	}
	return m.KeyFromData(kf, derived)
}

func (m *Manager) derive(password, salt []byte, params kdf.Params) (cipherkey.Key, error) {
	start := time.Now()
	material, err := kdf.Key(password, salt, params)
	metrics.RecordKDF(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer wipe(material)

	key, err := cipherkey.FromSlice(material)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputLengthInvalid, err)
	}
	return key, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

var defaultManager = NewManager()

// Generate creates a key file with the default Manager.
func Generate(key cipherkey.Key, password []byte, hostname, username string, withCreated bool) (*KeyFile, error) {
	return defaultManager.Generate(key, password, hostname, username, withCreated)
}

// Recover returns the master key sealed in kf using the default Manager.
func Recover(kf *KeyFile, password []byte) (cipherkey.Key, error) {
	return defaultManager.KeyFromPassword(kf, password)
}
