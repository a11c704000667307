// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Toolshelf is the command-line front end for a shelf of small tools.
//
// It manages the File Library (stored files, their lifecycle and
// thumbnails), inspects and edits per-tool state, and drives the
// inter-tool data exchange that hands one tool's output to another.
//
// Configuration comes from --config, then TOOLSHELF_CONFIG, then
// built-in defaults rooted at ~/.local/share/toolshelf.
package main
