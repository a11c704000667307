// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the toolshelf binary.
//
// A [Command] tree dispatches on the first positional argument, parses
// flags with pflag (either a hand-built FlagSet or a tagged params
// struct bound by [BindFlags]), and prints structured help with typo
// suggestions for unknown commands and flags.
//
// [Workspace] opens everything a command needs from the configuration:
// the SQLite database, the blob store and File Library, the per-tool
// state store, the tool registry and the resolver. Commands open it
// per invocation and close it before returning, which waits for any
// thumbnails queued during the command to land.
package cli
