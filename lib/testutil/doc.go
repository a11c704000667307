// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireNoReceive] and [RequireClosed] wrap the
// select-with-timeout pattern so tests waiting on event channels do
// not each carry their own time.After. They are the only helpers that
// use the wall clock; component timing in tests goes through
// clock.Fake.
//
// [DatabasePath] returns a fresh SQLite path inside t.TempDir().
//
// [UniqueID] generates increasing identifiers for test
// disambiguation (routes, directives, filenames).
//
// Helpers call t.Fatalf on failure. This package imports nothing from
// the rest of the module.
package testutil
