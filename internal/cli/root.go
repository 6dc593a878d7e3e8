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
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-repokey/internal/config"
	"github.com/jeremyhahn/go-repokey/internal/password"
	"github.com/jeremyhahn/go-repokey/pkg/keyfile"
	"github.com/jeremyhahn/go-repokey/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	flags    *Config
	settings *config.Config
	viper    *viper.Viper
	logger   *logging.Logger

	stdout io.Writer
	stderr io.Writer

	// prompter reads interactive passwords; nil disables prompting
	prompter password.Prompter

	// manager derives and seals key records
	manager *keyfile.Manager
}

func newApp() *app {
	return &app{
		flags:    NewConfig(),
		logger:   logging.Discard(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		prompter: password.NewTerminalPrompter(),
	}
}

// newRootCmd builds the command tree bound to a.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "repokey",
		Short: "repokey - repository master key management",
		Long: `repokey manages the password-protected key records that guard a
backup repository's master key.

Each key record seals the same master key under a different password
using scrypt and AES-256-CTR with Poly1305-AES. Any one password
unlocks the repository.

Repository locations:
  /path/to/repo                 local directory
  rest:https://host:8000/       repository served by "repokey serve"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "",
		"config file (env REPOKEY_CONFIG)")
	rootCmd.PersistentFlags().StringP("repo", "r", "",
		"repository location (env REPOKEY_REPO)")
	rootCmd.PersistentFlags().String("password-file", "",
		"read the repository password from a file")
	rootCmd.PersistentFlags().String("key-hint", "",
		"key id prefix to try first")
	rootCmd.PersistentFlags().StringP("output", "o", string(OutputFormatText),
		"output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newInitCmd(a))
	rootCmd.AddCommand(newKeyCmd(a))
	rootCmd.AddCommand(newUnlockCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	return rootCmd
}

// Execute runs the root command. Errors are printed in the selected output
// format before being returned.
func Execute() error {
	a := newApp()
	err := newRootCmd(a).Execute()
	if err != nil {
		a.handleError(err)
	}
	return err
}

// printer returns a Printer for the selected output format.
func (a *app) printer() *Printer {
	return NewPrinter(a.flags.OutputFormat, a.stdout)
}

// handleError prints an error to stderr
func (a *app) handleError(err error) {
	format := a.flags.OutputFormat
	if OutputFormat(format) != OutputFormatJSON {
		format = string(OutputFormatText)
	}
	printer := NewPrinter(format, a.stderr)
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
}

// verbosef prints a message if verbose mode is enabled
func (a *app) verbosef(format string, args ...any) {
	if a.flags.Verbose {
		fmt.Fprintf(a.stderr, "[VERBOSE] "+format+"\n", args...)
	}
}

// keyManager returns the configured manager or the production default.
func (a *app) keyManager() *keyfile.Manager {
	if a.manager == nil {
		a.manager = keyfile.NewManager(keyfile.WithLogger(a.logger))
	}
	return a.manager
}
