// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package file implements the "toolshelf file" command group: adding,
// reading, listing, promoting and deleting File Library entries, and
// collecting unreferenced temporary files.
package file
