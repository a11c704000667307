// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstore is the durable key-value store under the file
// library. Each entry is one row in the SQLite `files` table: the
// payload and optional thumbnail are BLOB columns bound directly from
// byte slices, alongside the descriptive metadata and lifecycle flag.
//
// # Atomicity
//
// Every mutation is a single statement or one IMMEDIATE transaction,
// so a concurrent reader sees either the old row or the new one. There
// are no cross-entry transactions; DeleteMatching selects and deletes
// inside one transaction only so it can report the ids it removed.
//
// # Payload encoding
//
// Payloads are compressed per entry. Text-like MIME types use zstd,
// media that is already compressed (PNG, JPEG, archives) is stored
// raw, and everything else tries LZ4. Compression that does not shrink
// the payload falls back to raw. The row records the encoding and the
// uncompressed size, plus a BLAKE3 digest of the uncompressed bytes
// that Get verifies: a mismatch is ErrCorrupt, never silently returned
// data.
//
// The store knows nothing about who references an entry. Lifecycle
// policy (what temporary means, when to collect) belongs to the file
// library.
package blobstore
