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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-repokey/pkg/crypto/cipherkey"
)

// ConfigVersion is the only repository format version this package writes or opens.
const ConfigVersion = 2

// Config is the repository identity, stored encrypted under the master key.
type Config struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
}

func newConfig() Config {
	return Config{Version: ConfigVersion, ID: uuid.NewString()}
}

// Validate checks the version and that ID is a UUID.
func (c Config) Validate() error {
	if c.Version != ConfigVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidConfig, c.Version)
	}
	if _, err := uuid.Parse(c.ID); err != nil {
		return fmt.Errorf("%w: id %q: %v", ErrInvalidConfig, c.ID, err)
	}
	return nil
}

func sealConfig(key cipherkey.Key, cfg Config) ([]byte, error) {
	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to encode config: %w", err)
	}
	return key.EncryptData(plaintext)
}

func openConfig(key cipherkey.Key, data []byte) (Config, error) {
	plaintext, err := key.DecryptData(data)
	if err != nil {
		return Config{}, fmt.Errorf("repository: failed to decrypt config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: trailing data", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
