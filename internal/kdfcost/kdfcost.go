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

// Package kdfcost carries reduced scrypt parameters from test helpers to
// keyfile.Manager. Only packages inside this module can import it, so code
// outside the module has no way to lower the cost of new key files.
package kdfcost

import "github.com/jeremyhahn/go-repokey/pkg/crypto/kdf"

// Cost is a scrypt parameter set for keyfile.WithCost. The zero value
// leaves the manager's parameters unchanged.
type Cost struct {
	params kdf.Params
}

// Minimum returns the cheapest valid scrypt parameters (N=2, r=1, p=1).
// Key files generated with them offer no protection against guessing.
func Minimum() Cost {
	params, err := kdf.NewParams(1, 1, 1)
	if err != nil {
		panic(err)
	}
	return Cost{params: params}
}

// Params returns the parameter set and whether one was set.
func (c Cost) Params() (kdf.Params, bool) {
	return c.params, c.params.R() != 0
}
