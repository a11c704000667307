// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filelibrary is the file catalog tools share. Files are
// created temporary or permanent; a temporary file becomes permanent
// only through [Library.MakeFilePermanentAndUpdate], and
// [Library.CleanupOrphanedTemporaryFiles] deletes a candidate only
// while it is still temporary, so a promotion racing a cleanup always
// keeps the file.
//
// Image files get a thumbnail derived in the background. Exactly one
// derivation job is scheduled per image, and its result is attached
// by a single applier goroutine that discards results for files
// deleted in the meantime. Subscribers observe progress through
// [Library.Subscribe].
package filelibrary
