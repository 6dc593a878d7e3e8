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

package testutil

import (
	"testing"

	"github.com/jeremyhahn/go-repokey/internal/kdfcost"
	"github.com/jeremyhahn/go-repokey/pkg/keyfile"
)

// NewKeyManager returns a key file manager with the cheapest valid scrypt
// parameters so tests that create repositories stay fast.
func NewKeyManager(tb testing.TB, opts ...keyfile.Option) *keyfile.Manager {
	tb.Helper()
	return keyfile.NewManager(append([]keyfile.Option{keyfile.WithCost(kdfcost.Minimum())}, opts...)...)
}
