// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package toolstate persists each tool's state, keyed by the tool's
// route.
//
// [Store] is the raw layer: one CBOR document per route in the
// tool_state table. [Mount] binds a typed state value to a route and
// returns a [Handle] that keeps the value in memory, writes changes
// back after a quiet period (Save coalesces bursts of updates into one
// write), and can be flushed on demand with SaveNow before another
// component reads the persisted copy.
//
// Persisted state that no longer decodes into the tool's type, or that
// fails the tool's validation, is discarded in favor of the declared
// default rather than surfaced as an error.
package toolstate
