// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package thumbnail derives downscaled previews for image entries off
// the caller's goroutine.
//
// A Deriver owns a fixed set of worker goroutines fed by a bounded job
// queue. Jobs go in through Submit; every accepted job produces
// exactly one Result on the Results channel, either a JPEG thumbnail
// or a non-nil Err. The Deriver never touches storage: the consumer of
// Results decides whether the entry still exists and attaches the
// thumbnail itself.
//
// Scaling keeps the aspect ratio and fits the longest edge within
// MaxEdge, flooring each dimension at 1px. Images already inside the
// cap are re-encoded at their own size.
package thumbnail
