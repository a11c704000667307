// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package state implements the "toolshelf state" command group for
// inspecting and editing persisted per-tool state.
//
// Commands take a tool directive and operate on that tool's route.
// An argument that names no known tool is used as the route itself,
// so state left behind by a removed tool can still be inspected and
// cleared.
package state
