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

package cli

import (
	"github.com/jeremyhahn/go-repokey/pkg/repository"
	"github.com/spf13/cobra"
)

func newUnlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Check that a password unlocks the repository",
		Long: `Search the key records for one the password opens, decrypt the
repository config with the recovered master key and print the result.
With --key-hint only the matching record is tried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd.Context(), func(repo *repository.Repository) error {
				return a.printer().PrintRepository("repository unlocked", a.repositoryInfo(repo))
			})
		},
	}
}
