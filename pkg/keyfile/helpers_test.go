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
	"testing"

	"github.com/jeremyhahn/go-repokey/internal/kdfcost"
)

// newTestManager returns a Manager with the cheapest valid scrypt parameters.
func newTestManager(tb testing.TB, opts ...Option) *Manager {
	tb.Helper()
	return NewManager(append([]Option{WithCost(kdfcost.Minimum())}, opts...)...)
}
