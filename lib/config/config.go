// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local use.
	Development Environment = "development"
	// Production is for shared installations.
	Production Environment = "production"
)

// Config is the master configuration for toolshelf.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Paths configures file locations.
	Paths PathsConfig `yaml:"paths"`

	// Library configures the File Library.
	Library LibraryConfig `yaml:"library"`

	// Thumbnail configures thumbnail derivation.
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`

	// State configures per-tool state persistence.
	State StateConfig `yaml:"state"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths     *PathsConfig     `yaml:"paths,omitempty"`
	Library   *LibraryConfig   `yaml:"library,omitempty"`
	Thumbnail *ThumbnailConfig `yaml:"thumbnail,omitempty"`
	State     *StateConfig     `yaml:"state,omitempty"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for toolshelf data.
	Root string `yaml:"root"`

	// Database is the SQLite file holding files and tool state.
	Database string `yaml:"database"`

	// Tools is the directory of JSONC tool definitions.
	Tools string `yaml:"tools"`
}

// LibraryConfig configures the File Library.
type LibraryConfig struct {
	// MaxTotal caps the summed size of stored files, in humanized
	// form ("512 MiB", "2GB"). Empty means unlimited.
	MaxTotal string `yaml:"max_total"`

	// ListLimit is the default number of entries listed.
	// Default: 50
	ListLimit int `yaml:"list_limit"`
}

// ThumbnailConfig configures thumbnail derivation.
type ThumbnailConfig struct {
	// MaxEdge caps the longest thumbnail edge in pixels.
	// Default: 150
	MaxEdge int `yaml:"max_edge"`

	// Workers is the number of derivation goroutines.
	// Default: 4
	Workers int `yaml:"workers"`

	// QueueSize bounds pending derivation jobs.
	// Default: 64
	QueueSize int `yaml:"queue_size"`

	// JPEGQuality is the thumbnail encoding quality, 1 to 100.
	// Default: 80
	JPEGQuality int `yaml:"jpeg_quality"`
}

// StateConfig configures per-tool state persistence.
type StateConfig struct {
	// Debounce is the quiet period before state is written.
	// Default: 500ms
	Debounce string `yaml:"debounce"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. Database and Tools follow
// Root unless the file sets them.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:     filepath.Join(homeDir, ".local", "share", "toolshelf"),
			Database: "${TOOLSHELF_ROOT}/toolshelf.db",
			Tools:    "${TOOLSHELF_ROOT}/tools",
		},
		Library: LibraryConfig{
			ListLimit: 50,
		},
		Thumbnail: ThumbnailConfig{
			MaxEdge:     150,
			Workers:     4,
			QueueSize:   64,
			JPEGQuality: 80,
		},
		State: StateConfig{
			Debounce: "500ms",
		},
	}
}

// Load loads configuration from the TOOLSHELF_CONFIG environment
// variable. If it is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv("TOOLSHELF_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("TOOLSHELF_CONFIG environment variable not set; " +
			"set it to the path of your toolshelf.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// Discover picks the configuration source for a command: path when
// it is set, otherwise TOOLSHELF_CONFIG, otherwise the defaults.
func Discover(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv("TOOLSHELF_CONFIG") != "" {
		return Load()
	}
	cfg := Default()
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Library:   &LibraryConfig{MaxTotal: "1 GiB"},
				Thumbnail: &ThumbnailConfig{Workers: 2},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Database != "" {
			c.Paths.Database = overrides.Paths.Database
		}
		if overrides.Paths.Tools != "" {
			c.Paths.Tools = overrides.Paths.Tools
		}
	}

	if overrides.Library != nil {
		if overrides.Library.MaxTotal != "" {
			c.Library.MaxTotal = overrides.Library.MaxTotal
		}
		if overrides.Library.ListLimit != 0 {
			c.Library.ListLimit = overrides.Library.ListLimit
		}
	}

	if overrides.Thumbnail != nil {
		if overrides.Thumbnail.MaxEdge != 0 {
			c.Thumbnail.MaxEdge = overrides.Thumbnail.MaxEdge
		}
		if overrides.Thumbnail.Workers != 0 {
			c.Thumbnail.Workers = overrides.Thumbnail.Workers
		}
		if overrides.Thumbnail.QueueSize != 0 {
			c.Thumbnail.QueueSize = overrides.Thumbnail.QueueSize
		}
		if overrides.Thumbnail.JPEGQuality != 0 {
			c.Thumbnail.JPEGQuality = overrides.Thumbnail.JPEGQuality
		}
	}

	if overrides.State != nil && overrides.State.Debounce != "" {
		c.State.Debounce = overrides.State.Debounce
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"TOOLSHELF_ROOT": c.Paths.Root,
		"HOME":           os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["TOOLSHELF_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.Tools = expandVars(c.Paths.Tools, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// MaxTotalBytes parses Library.MaxTotal. Zero means unlimited.
func (c *Config) MaxTotalBytes() (int64, error) {
	if c.Library.MaxTotal == "" {
		return 0, nil
	}
	size, err := humanize.ParseBytes(c.Library.MaxTotal)
	if err != nil {
		return 0, fmt.Errorf("library.max_total: %w", err)
	}
	if size > 1<<62 {
		return 0, fmt.Errorf("library.max_total: %s is too large", c.Library.MaxTotal)
	}
	return int64(size), nil
}

// DebounceDuration parses State.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(c.State.Debounce)
	if err != nil {
		return 0, fmt.Errorf("state.debounce: %w", err)
	}
	return duration, nil
}

// Validate checks the configuration for errors and reports all of
// them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}

	if _, err := c.MaxTotalBytes(); err != nil {
		errs = append(errs, err)
	}
	if c.Library.ListLimit < 0 {
		errs = append(errs, fmt.Errorf("library.list_limit must not be negative"))
	}

	if c.Thumbnail.MaxEdge < 1 {
		errs = append(errs, fmt.Errorf("thumbnail.max_edge must be positive"))
	}
	if c.Thumbnail.Workers < 1 {
		errs = append(errs, fmt.Errorf("thumbnail.workers must be positive"))
	}
	if c.Thumbnail.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("thumbnail.queue_size must be positive"))
	}
	if c.Thumbnail.JPEGQuality < 1 || c.Thumbnail.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("thumbnail.jpeg_quality must be between 1 and 100"))
	}

	if duration, err := c.DebounceDuration(); err != nil {
		errs = append(errs, err)
	} else if duration <= 0 {
		errs = append(errs, fmt.Errorf("state.debounce must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the root directory and the database's parent
// directory if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.Database),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
