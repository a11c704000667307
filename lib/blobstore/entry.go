// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for an id with no entry.
	ErrNotFound = errors.New("blobstore: entry not found")

	// ErrCorrupt is returned when a stored payload fails decoding or
	// its digest does not match.
	ErrCorrupt = errors.New("blobstore: entry corrupt")

	// ErrQuotaExceeded is returned by Put when the new payload would
	// push the stored total past Config.MaxTotalBytes.
	ErrQuotaExceeded = errors.New("blobstore: storage quota exceeded")
)

// Entry is one stored object. Payload and Thumbnail belong to the
// caller once returned but are shared with no one else; callers that
// hand them on must not mutate them.
type Entry struct {
	ID             string
	Filename       string
	MimeType       string
	Size           int64
	Temporary      bool
	OriginTool     string
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Payload is nil when the entry was listed with WithoutPayload.
	Payload []byte

	// Thumbnail and ThumbnailType are empty until a derived preview
	// has been attached.
	Thumbnail     []byte
	ThumbnailType string
}

// Metadata describes a payload being stored.
type Metadata struct {
	Filename   string
	MimeType   string
	Temporary  bool
	OriginTool string
}

// Lifecycle selects entries by their temporary flag.
type Lifecycle int

const (
	// AnyLifecycle matches every entry.
	AnyLifecycle Lifecycle = iota
	// TemporaryOnly matches entries eligible for collection.
	TemporaryOnly
	// PermanentOnly matches entries the user retained.
	PermanentOnly
)

// Filter narrows List and DeleteMatching.
type Filter struct {
	Lifecycle Lifecycle

	// MimePrefix matches entries whose MIME type starts with the
	// prefix, e.g. "image/". Empty matches all.
	MimePrefix string

	// Limit caps the result count. Zero or negative is unlimited.
	// Ignored by DeleteMatching.
	Limit int

	// WithoutPayload skips reading payload bytes. Thumbnails are
	// still read.
	WithoutPayload bool
}

// Usage is the store's size bookkeeping, split by lifecycle.
type Usage struct {
	TemporaryCount int
	TemporaryBytes int64
	PermanentCount int
	PermanentBytes int64
	ThumbnailBytes int64
}

// TotalBytes is the payload total across both lifecycles.
func (u Usage) TotalBytes() int64 { return u.TemporaryBytes + u.PermanentBytes }

// NewID returns a random (version 4) 128-bit id as 32 lowercase hex
// characters. Panics if the system entropy source fails.
func NewID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// IsID reports whether s has the shape of an id returned by NewID.
func IsID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
