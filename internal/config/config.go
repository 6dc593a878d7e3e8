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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RESTPrefix marks a repository location served over HTTP.
const RESTPrefix = "rest:"

// Config represents the complete CLI and server configuration
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Key        KeyConfig        `yaml:"key"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	TLS        TLSConfig        `yaml:"tls"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// RepositoryConfig locates the repository and its password
type RepositoryConfig struct {
	// Location is a directory or "rest:" followed by a server URL
	Location     string        `yaml:"location"`
	PasswordFile string        `yaml:"password_file"`
	KeyHint      string        `yaml:"key_hint"`
	Timeout      time.Duration `yaml:"timeout"`
	CAFile       string        `yaml:"ca_file"`
}

// KeyConfig controls new key records and password prompting
type KeyConfig struct {
	Hostname       string        `yaml:"hostname"`
	Username       string        `yaml:"username"`
	PromptAttempts int           `yaml:"prompt_attempts"`
	PromptDelay    time.Duration `yaml:"prompt_delay"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig controls the storage server started by "serve"
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Path         string `yaml:"path"`
	ReadOnly     bool   `yaml:"read_only"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// RateLimitConfig controls per-client request limiting on the server
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// MetricsConfig controls the /metrics endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		Repository: RepositoryConfig{
			Timeout: 60 * time.Second,
		},
		Key: KeyConfig{
			Hostname:       hostname,
			Username:       os.Getenv("USER"),
			PromptAttempts: 3,
			PromptDelay:    time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: 600,
		},
	}
}

// Load reads a YAML file over the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies REPOKEY_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("REPOKEY_REPOSITORY"); v != "" {
		cfg.Repository.Location = v
	}
	if v := os.Getenv("REPOKEY_PASSWORD_FILE"); v != "" {
		cfg.Repository.PasswordFile = v
	}
	if v := os.Getenv("REPOKEY_KEY_HINT"); v != "" {
		cfg.Repository.KeyHint = v
	}
	if v := os.Getenv("REPOKEY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REPOKEY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("REPOKEY_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPOKEY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REPOKEY_PORT value %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid max_body_bytes: %d", c.Server.MaxBodyBytes)
	}

	if c.Key.PromptAttempts < 1 {
		return fmt.Errorf("prompt_attempts must be at least 1, got %d", c.Key.PromptAttempts)
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin < 1 {
		return fmt.Errorf("ratelimit requests_per_min must be positive when enabled")
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	if loc := c.Repository.Location; strings.HasPrefix(loc, RESTPrefix) && strings.TrimPrefix(loc, RESTPrefix) == "" {
		return fmt.Errorf("repository location %q has no server URL", loc)
	}
	return nil
}

// ErrNoRepository is returned when a command needs a repository location and none is set.
var ErrNoRepository = errors.New("no repository location given (use --repo or REPOKEY_REPO)")

// IsREST reports whether the repository is served over HTTP.
func (r *RepositoryConfig) IsREST() bool {
	return strings.HasPrefix(r.Location, RESTPrefix)
}

// URL returns the server URL of a REST location.
func (r *RepositoryConfig) URL() string {
	return strings.TrimPrefix(r.Location, RESTPrefix)
}
