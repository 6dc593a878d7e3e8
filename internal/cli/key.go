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

const newPasswordPrompt = "enter new password: "

// newKeyCmd represents the key command
func newKeyCmd(a *app) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage repository key records",
		Long: `List, add and remove the key records of a repository. Every record
holds the same master key sealed under its own password.`,
	}

	keyCmd.AddCommand(newKeyListCmd(a))
	keyCmd.AddCommand(newKeyAddCmd(a))
	keyCmd.AddCommand(newKeyRemoveCmd(a))
	keyCmd.AddCommand(newKeyPasswdCmd(a))
	return keyCmd
}

func newKeyListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List key records",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd.Context(), func(repo *repository.Repository) error {
				keys, err := repo.ListKeys()
				if err != nil {
					return err
				}
				return a.printer().PrintKeyList(keys)
			})
		},
	}
}

func newKeyAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a key record for a new password",
		Long: `Unlock the repository and seal its master key under a new password.
The new password is read from --new-password-file, REPOKEY_NEW_PASSWORD
or an interactive prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host := a.flagString("hostname"); host != "" {
				a.settings.Key.Hostname = host
			}
			if user := a.flagString("username"); user != "" {
				a.settings.Key.Username = user
			}
			return a.withRepository(cmd.Context(), func(repo *repository.Repository) error {
				pw, cleanup, err := a.readNewPassword(a.flagString("new-password-file"), newPasswordPrompt)
				if err != nil {
					return err
				}
				defer cleanup()

				id, err := repo.AddKey(pw)
				if err != nil {
					return err
				}
				return a.printer().PrintKeyChange("added", id.String())
			})
		},
	}
	cmd.Flags().String("new-password-file", "", "read the new password from a file")
	cmd.Flags().String("hostname", "", "hostname recorded in the new key (default from config)")
	cmd.Flags().String("username", "", "username recorded in the new key (default from config)")
	return cmd
}

func newKeyRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a key record",
		Long: `Remove the key record whose id starts with <id>. The record used to
unlock the repository cannot be removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd.Context(), func(repo *repository.Repository) error {
				id, err := repo.FindKeyID(args[0])
				if err != nil {
					return err
				}
				if err := repo.RemoveKey(id); err != nil {
					return err
				}
				return a.printer().PrintKeyChange("removed", id.String())
			})
		},
	}
}

func newKeyPasswdCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the current key record",
		Long: `Seal the master key under a new password and remove the key record
used to unlock the repository.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd.Context(), func(repo *repository.Repository) error {
				pw, cleanup, err := a.readNewPassword(a.flagString("new-password-file"), newPasswordPrompt)
				if err != nil {
					return err
				}
				defer cleanup()

				id, err := repo.ChangePassword(pw)
				if err != nil {
					return err
				}
				return a.printer().PrintKeyChange("changed password, new", id.String())
			})
		},
	}
	cmd.Flags().String("new-password-file", "", "read the new password from a file")
	return cmd
}
