// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "toolshelf.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Thumbnail.MaxEdge != 150 || cfg.Thumbnail.JPEGQuality != 80 {
		t.Errorf("unexpected thumbnail defaults: %+v", cfg.Thumbnail)
	}
	if cfg.Library.ListLimit != 50 {
		t.Errorf("expected list_limit=50, got %d", cfg.Library.ListLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_RequiresToolshelfConfig(t *testing.T) {
	t.Setenv("TOOLSHELF_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when TOOLSHELF_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "TOOLSHELF_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %q", err)
	}
}

func TestLoad_WithToolshelfConfig(t *testing.T) {
	configPath := writeConfig(t, `
paths:
  root: /test/root
`)
	t.Setenv("TOOLSHELF_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Database != "/test/root/toolshelf.db" {
		t.Errorf("database does not follow root: %s", cfg.Paths.Database)
	}
	if cfg.Paths.Tools != "/test/root/tools" {
		t.Errorf("tools does not follow root: %s", cfg.Paths.Tools)
	}
}

func TestDiscover(t *testing.T) {
	flagPath := writeConfig(t, "paths:\n  root: /from/flag\n")
	envPath := writeConfig(t, "paths:\n  root: /from/env\n")

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("TOOLSHELF_CONFIG", envPath)
		cfg, err := Discover(flagPath)
		if err != nil {
			t.Fatalf("Discover() failed: %v", err)
		}
		if cfg.Paths.Root != "/from/flag" {
			t.Errorf("root = %s, want /from/flag", cfg.Paths.Root)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("TOOLSHELF_CONFIG", envPath)
		cfg, err := Discover("")
		if err != nil {
			t.Fatalf("Discover() failed: %v", err)
		}
		if cfg.Paths.Root != "/from/env" {
			t.Errorf("root = %s, want /from/env", cfg.Paths.Root)
		}
	})

	t.Run("defaults are expanded", func(t *testing.T) {
		t.Setenv("TOOLSHELF_CONFIG", "")
		cfg, err := Discover("")
		if err != nil {
			t.Fatalf("Discover() failed: %v", err)
		}
		if strings.Contains(cfg.Paths.Database, "${") {
			t.Errorf("database path not expanded: %s", cfg.Paths.Database)
		}
		if cfg.Paths.Database != filepath.Join(cfg.Paths.Root, "toolshelf.db") {
			t.Errorf("database = %s, want it under %s", cfg.Paths.Database, cfg.Paths.Root)
		}
	})
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: development

paths:
  root: ${HOME}/shelf
  database: /var/lib/toolshelf/files.db

library:
  max_total: 256 MiB
  list_limit: 10

thumbnail:
  max_edge: 200
  workers: 1

state:
  debounce: 250ms
`)
	t.Setenv("HOME", "/home/tester")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/home/tester/shelf" {
		t.Errorf("expected root=/home/tester/shelf, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Database != "/var/lib/toolshelf/files.db" {
		t.Errorf("expected explicit database, got %s", cfg.Paths.Database)
	}
	if cfg.Paths.Tools != "/home/tester/shelf/tools" {
		t.Errorf("expected tools under root, got %s", cfg.Paths.Tools)
	}

	maxBytes, err := cfg.MaxTotalBytes()
	if err != nil {
		t.Fatalf("MaxTotalBytes: %v", err)
	}
	if maxBytes != 256<<20 {
		t.Errorf("expected max_total=%d bytes, got %d", 256<<20, maxBytes)
	}
	if cfg.Library.ListLimit != 10 {
		t.Errorf("expected list_limit=10, got %d", cfg.Library.ListLimit)
	}

	if cfg.Thumbnail.MaxEdge != 200 || cfg.Thumbnail.Workers != 1 {
		t.Errorf("unexpected thumbnail config: %+v", cfg.Thumbnail)
	}
	if cfg.Thumbnail.QueueSize != 64 {
		t.Errorf("unset queue_size lost its default: %d", cfg.Thumbnail.QueueSize)
	}

	debounce, err := cfg.DebounceDuration()
	if err != nil {
		t.Fatalf("DebounceDuration: %v", err)
	}
	if debounce != 250*time.Millisecond {
		t.Errorf("expected debounce=250ms, got %s", debounce)
	}
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	configPath := writeConfig(t, "paths: [unbalanced")
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("LoadFile accepted malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

paths:
  root: /default/root

thumbnail:
  workers: 8

production:
  paths:
    root: /prod/root
  thumbnail:
    workers: 3
  state:
    debounce: 1s
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Database != "/prod/root/toolshelf.db" {
		t.Errorf("database does not follow overridden root: %s", cfg.Paths.Database)
	}
	if cfg.Thumbnail.Workers != 3 {
		t.Errorf("expected workers=3 from production override, got %d", cfg.Thumbnail.Workers)
	}
	if cfg.State.Debounce != "1s" {
		t.Errorf("expected debounce=1s, got %s", cfg.State.Debounce)
	}
	if cfg.Library.MaxTotal != "" {
		t.Errorf("explicit production section should not apply built-in defaults, got max_total=%s", cfg.Library.MaxTotal)
	}
}

func TestProductionDefaults(t *testing.T) {
	configPath := writeConfig(t, "environment: production\n")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Library.MaxTotal != "1 GiB" {
		t.Errorf("expected max_total=1 GiB, got %q", cfg.Library.MaxTotal)
	}
	if cfg.Thumbnail.Workers != 2 {
		t.Errorf("expected workers=2, got %d", cfg.Thumbnail.Workers)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("TOOLSHELF_ROOT", "/env/root")
	t.Setenv("TOOLSHELF_ENVIRONMENT", "production")

	configPath := writeConfig(t, `
environment: development
paths:
  root: /file/root
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Database != "/file/root/toolshelf.db" {
		t.Errorf("expected database under file root, got %s", cfg.Paths.Database)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/toolshelf",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/toolshelf",
		},
		{
			input:    "${TOOLSHELF_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "staging" },
			wantErr: "invalid environment",
		},
		{
			name:    "empty root path",
			modify:  func(c *Config) { c.Paths.Root = "" },
			wantErr: "paths.root is required",
		},
		{
			name:    "unparseable max total",
			modify:  func(c *Config) { c.Library.MaxTotal = "lots" },
			wantErr: "library.max_total",
		},
		{
			name:    "quality out of range",
			modify:  func(c *Config) { c.Thumbnail.JPEGQuality = 101 },
			wantErr: "jpeg_quality",
		},
		{
			name:    "zero debounce",
			modify:  func(c *Config) { c.State.Debounce = "0s" },
			wantErr: "state.debounce must be positive",
		},
		{
			name: "several problems reported together",
			modify: func(c *Config) {
				c.Thumbnail.Workers = 0
				c.State.Debounce = "soon"
			},
			wantErr: "thumbnail.workers must be positive\nstate.debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "toolshelf")
	cfg.Paths.Database = filepath.Join(tmpDir, "data", "nested", "toolshelf.db")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, filepath.Dir(cfg.Paths.Database)} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
