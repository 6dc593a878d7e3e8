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
	"strings"

	"github.com/jeremyhahn/go-repokey/internal/config"
	"github.com/jeremyhahn/go-repokey/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix prefixes the environment variables bound to command flags,
// e.g. --key-hint is read from REPOKEY_KEY_HINT.
const envPrefix = "REPOKEY"

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the YAML configuration file
	ConfigFile string

	// Repository is a directory or "rest:" followed by a server URL
	Repository string

	// PasswordFile holds the repository password on its first line
	PasswordFile string

	// KeyHint is a key id prefix tried before all other keys
	KeyHint string

	// OutputFormat controls output formatting (json, text, table)
	OutputFormat string

	// Verbose enables debug logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
	}
}

// Validate checks the flag values that do not depend on the config file.
func (c *Config) Validate() error {
	switch OutputFormat(c.OutputFormat) {
	case OutputFormatText, OutputFormatJSON, OutputFormatTable:
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", c.OutputFormat)
	}
}

// load layers the command line over the environment over the config file.
// Flags the user did not set fall back to REPOKEY_* variables through viper.
func (a *app) load(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	a.viper = v

	a.flags.ConfigFile = v.GetString("config")
	a.flags.Repository = v.GetString("repo")
	a.flags.PasswordFile = v.GetString("password-file")
	a.flags.KeyHint = v.GetString("key-hint")
	a.flags.OutputFormat = v.GetString("output")
	a.flags.Verbose = v.GetBool("verbose")
	if err := a.flags.Validate(); err != nil {
		return err
	}

	settings, err := config.Load(a.flags.ConfigFile)
	if err != nil {
		return err
	}
	if a.flags.Repository != "" {
		settings.Repository.Location = a.flags.Repository
	}
	if a.flags.PasswordFile != "" {
		settings.Repository.PasswordFile = a.flags.PasswordFile
	}
	if a.flags.KeyHint != "" {
		settings.Repository.KeyHint = a.flags.KeyHint
	}
	if a.flags.Verbose {
		settings.Logging.Level = "debug"
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.settings = settings

	a.logger = logging.New(&logging.Options{
		Level:  settings.Logging.Level,
		Format: logging.Format(strings.ToLower(settings.Logging.Format)),
		Output: a.stderr,
	})
	a.verbosef("using repository %q", settings.Repository.Location)
	return nil
}

// flagString returns a command-local flag, falling back to its REPOKEY_*
// variable.
func (a *app) flagString(name string) string {
	if a.viper == nil {
		return ""
	}
	return a.viper.GetString(name)
}
