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

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new repository",
		Long: `Create a new repository with a random master key sealed under the
repository password. The password is read from --password-file,
REPOKEY_PASSWORD or an interactive prompt that asks twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			be, err := a.openBackend()
			if err != nil {
				return err
			}
			defer be.Backend().Close()

			src := a.passwordSource()
			pw, err := src.ReadNew("enter password for new repository: ")
			if err != nil {
				return err
			}
			defer pw.Clear()

			b := pw.Bytes()
			defer func() {
				for i := range b {
					b[i] = 0
				}
			}()

			repo, err := repository.Init(be, b, a.repositoryOptions()...)
			if err != nil {
				return err
			}
			return a.printer().PrintRepository("created repository", a.repositoryInfo(repo))
		},
	}
}
