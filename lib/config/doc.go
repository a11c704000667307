// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for toolshelf.
//
// Configuration is loaded from a single file specified by either the
// TOOLSHELF_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// The file may carry development and production sections that
// override base values when [Config].Environment matches. Production
// defaults are stricter: without an explicit section the library is
// capped at 1 GiB and thumbnail workers are limited to two.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${TOOLSHELF_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Library, Thumbnail, State
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other toolshelf packages.
package config
