// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filelibrary

// EventKind names a library change.
type EventKind string

const (
	EventAdded             EventKind = "added"
	EventDeleted           EventKind = "deleted"
	EventPromoted          EventKind = "promoted"
	EventThumbnailAttached EventKind = "thumbnail_attached"
	EventThumbnailFailed   EventKind = "thumbnail_failed"
)

// Event describes one change to one file. Err is set only for
// EventThumbnailFailed.
type Event struct {
	Kind   EventKind
	FileID string
	Err    error
}
