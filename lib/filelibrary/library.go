// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filelibrary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/toolshelf/lib/blobstore"
	"github.com/bureau-foundation/toolshelf/lib/clock"
	"github.com/bureau-foundation/toolshelf/lib/notify"
	"github.com/bureau-foundation/toolshelf/lib/thumbnail"
)

// ErrQuotaExceeded is returned by AddFile when the store's byte
// budget would be exceeded.
var ErrQuotaExceeded = blobstore.ErrQuotaExceeded

// ErrThumbnailQueueFull is carried by an EventThumbnailFailed event
// when the deriver had no room for the job.
var ErrThumbnailQueueFull = errors.New("filelibrary: thumbnail queue full")

// StoredFile is one library entry as seen by tools.
type StoredFile struct {
	ID            string
	Filename      string
	Type          string
	Size          int64
	Blob          []byte
	ThumbnailBlob []byte
	ThumbnailType string
	IsTemporary   bool
	OriginTool    string

	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// IsImage reports whether the file's MIME type is an image type.
func (f *StoredFile) IsImage() bool { return isImage(f.Type) }

// HasThumbnail reports whether a preview has been attached.
func (f *StoredFile) HasThumbnail() bool { return len(f.ThumbnailBlob) > 0 }

// Config holds the dependencies of a Library.
type Config struct {
	// Store holds the entries. Required.
	Store *blobstore.Store

	// Deriver produces thumbnails for image files. Optional: nil
	// disables thumbnails. The Library takes ownership and closes it
	// in Close.
	Deriver *thumbnail.Deriver

	// Clock stamps access times. Required.
	Clock clock.Clock

	// Logger receives debug and warning messages. Nil discards them.
	Logger *slog.Logger
}

// Library is the shared file catalog. Safe for concurrent use.
type Library struct {
	store   *blobstore.Store
	deriver *thumbnail.Deriver
	clock   clock.Clock
	logger  *slog.Logger
	events  notify.Broadcaster[Event]

	// pending holds the ids with a thumbnail job in flight. Deleting
	// a file removes its id so the applier drops the late result.
	mu      sync.Mutex
	pending map[string]struct{}

	applierDone chan struct{}
	closeOnce   sync.Once
}

// New creates a Library and, when a Deriver is configured, starts the
// thumbnail applier.
func New(cfg Config) (*Library, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("filelibrary: Store is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("filelibrary: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	library := &Library{
		store:       cfg.Store,
		deriver:     cfg.Deriver,
		clock:       cfg.Clock,
		logger:      logger,
		pending:     make(map[string]struct{}),
		applierDone: make(chan struct{}),
	}
	if library.deriver != nil {
		go library.applyThumbnails()
	} else {
		close(library.applierDone)
	}
	return library, nil
}

// AddFile stores blob as a new file and returns its id. An empty
// mimeType is stored as application/octet-stream. Image files get a
// thumbnail job; its failure never fails AddFile. The caller must
// not modify blob afterwards.
func (l *Library) AddFile(ctx context.Context, blob []byte, filename, mimeType string, temporary bool, originTool string) (string, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	id, err := l.store.Put(ctx, blob, blobstore.Metadata{
		Filename:   filename,
		MimeType:   mimeType,
		Temporary:  temporary,
		OriginTool: originTool,
	})
	if err != nil {
		return "", fmt.Errorf("filelibrary: add %q: %w", filename, err)
	}
	l.logger.Debug("file added",
		"file_id", id,
		"filename", filename,
		"mime_type", mimeType,
		"size", len(blob),
		"temporary", temporary,
	)
	l.events.Publish(Event{Kind: EventAdded, FileID: id})

	if isImage(mimeType) && l.deriver != nil {
		l.scheduleThumbnail(id, blob, mimeType)
	}
	return id, nil
}

func (l *Library) scheduleThumbnail(id string, blob []byte, mimeType string) {
	l.mu.Lock()
	l.pending[id] = struct{}{}
	l.mu.Unlock()

	if l.deriver.Submit(thumbnail.Job{FileID: id, Data: blob, MimeType: mimeType}) {
		return
	}

	l.mu.Lock()
	delete(l.pending, id)
	l.mu.Unlock()
	l.logger.Warn("thumbnail job rejected", "file_id", id)
	l.events.Publish(Event{Kind: EventThumbnailFailed, FileID: id, Err: ErrThumbnailQueueFull})
}

// GetFile returns the file, or nil with a nil error when no file has
// that id. It refreshes the access time; a failure to do so is logged
// and otherwise ignored.
func (l *Library) GetFile(ctx context.Context, id string) (*StoredFile, error) {
	entry, err := l.store.Get(ctx, id)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filelibrary: get %s: %w", id, err)
	}

	now := l.clock.Now()
	if err := l.store.Touch(ctx, id, now); err != nil {
		l.logger.Debug("access time not updated", "file_id", id, "error", err)
	} else {
		entry.LastAccessedAt = now
	}
	return fromEntry(entry), nil
}

// StatFile returns the file's metadata without its payload, or nil
// with a nil error when no file has that id. Unlike GetFile it leaves
// the access time alone.
func (l *Library) StatFile(ctx context.Context, id string) (*StoredFile, error) {
	entry, err := l.store.Stat(ctx, id)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filelibrary: stat %s: %w", id, err)
	}
	return fromEntry(entry), nil
}

// MakeFilePermanentAndUpdate promotes a temporary file to permanent
// and, when newFilename is not empty, renames it. Returns false when
// no file has that id. Promoting an already permanent file only
// applies the rename.
func (l *Library) MakeFilePermanentAndUpdate(ctx context.Context, id, newFilename string) (bool, error) {
	err := l.store.MarkPermanent(ctx, id, newFilename)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("filelibrary: promote %s: %w", id, err)
	}
	l.logger.Debug("file promoted", "file_id", id, "filename", newFilename)
	l.events.Publish(Event{Kind: EventPromoted, FileID: id})
	return true, nil
}

// DeleteFile removes a file regardless of lifecycle. Deleting a
// missing id is not an error.
func (l *Library) DeleteFile(ctx context.Context, id string) error {
	removed, err := l.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("filelibrary: delete %s: %w", id, err)
	}
	l.forget(id)
	if removed {
		l.logger.Debug("file deleted", "file_id", id)
		l.events.Publish(Event{Kind: EventDeleted, FileID: id})
	}
	return nil
}

// CleanupOrphanedTemporaryFiles deletes each candidate that is still
// temporary. Permanent and missing candidates are skipped. A failure
// on one candidate does not stop the others; all failures are
// returned joined.
func (l *Library) CleanupOrphanedTemporaryFiles(ctx context.Context, candidateIDs []string) error {
	var errs []error
	seen := make(map[string]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		if id == "" {
			continue
		}
		if _, duplicate := seen[id]; duplicate {
			continue
		}
		seen[id] = struct{}{}

		removed, err := l.store.DeleteIfTemporary(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !removed {
			l.logger.Debug("cleanup skipped file", "file_id", id)
			continue
		}
		l.forget(id)
		l.logger.Debug("orphaned temporary file deleted", "file_id", id)
		l.events.Publish(Event{Kind: EventDeleted, FileID: id})
	}
	if len(errs) > 0 {
		return fmt.Errorf("filelibrary: cleanup: %w", errors.Join(errs...))
	}
	return nil
}

// SweepTemporaryFiles deletes temporary files created before cutoff
// whose ids are not in keep, and returns the deleted ids. Files
// promoted during the sweep are kept.
func (l *Library) SweepTemporaryFiles(ctx context.Context, keep map[string]struct{}, cutoff time.Time) ([]string, error) {
	entries, err := l.store.List(ctx, blobstore.Filter{
		Lifecycle:      blobstore.TemporaryOnly,
		WithoutPayload: true,
	})
	if err != nil {
		return nil, fmt.Errorf("filelibrary: sweep: %w", err)
	}

	var candidates []string
	for _, entry := range entries {
		if _, referenced := keep[entry.ID]; referenced {
			continue
		}
		if !entry.CreatedAt.Before(cutoff) {
			continue
		}
		candidates = append(candidates, entry.ID)
	}

	var deleted []string
	var errs []error
	for _, id := range candidates {
		removed, err := l.store.DeleteIfTemporary(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if removed {
			l.forget(id)
			l.events.Publish(Event{Kind: EventDeleted, FileID: id})
			deleted = append(deleted, id)
		}
	}
	l.logger.Debug("temporary files swept", "candidates", len(candidates), "deleted", len(deleted))
	if len(errs) > 0 {
		return deleted, fmt.Errorf("filelibrary: sweep: %w", errors.Join(errs...))
	}
	return deleted, nil
}

// ListImages returns permanent image files, newest first. A limit of
// zero or less returns all of them.
func (l *Library) ListImages(ctx context.Context, limit int) ([]*StoredFile, error) {
	entries, err := l.store.List(ctx, imageFilter(limit))
	if err != nil {
		return nil, fmt.Errorf("filelibrary: list images: %w", err)
	}
	files := make([]*StoredFile, len(entries))
	for i, entry := range entries {
		files[i] = fromEntry(entry)
	}
	return files, nil
}

// ListFiles returns files matching filter, newest first.
func (l *Library) ListFiles(ctx context.Context, filter blobstore.Filter) ([]*StoredFile, error) {
	entries, err := l.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("filelibrary: list: %w", err)
	}
	files := make([]*StoredFile, len(entries))
	for i, entry := range entries {
		files[i] = fromEntry(entry)
	}
	return files, nil
}

// ClearAllImages deletes every permanent image file and returns how
// many were removed. Temporary files are left alone.
func (l *Library) ClearAllImages(ctx context.Context) (int, error) {
	ids, err := l.store.DeleteMatching(ctx, imageFilter(0))
	if err != nil {
		return 0, fmt.Errorf("filelibrary: clear images: %w", err)
	}
	for _, id := range ids {
		l.forget(id)
		l.events.Publish(Event{Kind: EventDeleted, FileID: id})
	}
	l.logger.Debug("images cleared", "count", len(ids))
	return len(ids), nil
}

// Usage reports entry counts and byte totals.
func (l *Library) Usage(ctx context.Context) (blobstore.Usage, error) {
	usage, err := l.store.Usage(ctx)
	if err != nil {
		return blobstore.Usage{}, fmt.Errorf("filelibrary: usage: %w", err)
	}
	return usage, nil
}

// Subscribe returns a channel of library events and a cancel
// function. Events are dropped for a subscriber whose buffer is full.
func (l *Library) Subscribe(buffer int) (<-chan Event, func()) {
	return l.events.Subscribe(buffer)
}

// Close stops accepting thumbnail jobs, waits for queued jobs to be
// applied, and closes all subscriptions. Other methods must not be
// called after Close.
func (l *Library) Close() {
	l.closeOnce.Do(func() {
		if l.deriver != nil {
			l.deriver.Close()
		}
		<-l.applierDone
		l.events.Close()
	})
}

func (l *Library) forget(id string) {
	l.mu.Lock()
	delete(l.pending, id)
	l.mu.Unlock()
}

// applyThumbnails is the only writer of thumbnails. It runs until the
// deriver's results channel closes.
func (l *Library) applyThumbnails() {
	defer close(l.applierDone)
	ctx := context.Background()

	for result := range l.deriver.Results() {
		l.mu.Lock()
		_, wanted := l.pending[result.FileID]
		delete(l.pending, result.FileID)
		l.mu.Unlock()

		if !wanted {
			l.logger.Debug("thumbnail discarded, file gone", "file_id", result.FileID)
			continue
		}
		if !result.OK() {
			l.logger.Warn("thumbnail derivation failed", "file_id", result.FileID, "error", result.Err)
			l.events.Publish(Event{Kind: EventThumbnailFailed, FileID: result.FileID, Err: result.Err})
			continue
		}

		err := l.store.AttachThumbnail(ctx, result.FileID, result.Thumbnail.Data, result.MimeType)
		if errors.Is(err, blobstore.ErrNotFound) {
			l.logger.Debug("thumbnail discarded, file gone", "file_id", result.FileID)
			continue
		}
		if err != nil {
			l.logger.Warn("thumbnail not stored", "file_id", result.FileID, "error", err)
			l.events.Publish(Event{Kind: EventThumbnailFailed, FileID: result.FileID, Err: err})
			continue
		}
		l.logger.Debug("thumbnail attached",
			"file_id", result.FileID,
			"width", result.Thumbnail.Width,
			"height", result.Thumbnail.Height,
		)
		l.events.Publish(Event{Kind: EventThumbnailAttached, FileID: result.FileID})
	}
}

func imageFilter(limit int) blobstore.Filter {
	return blobstore.Filter{
		Lifecycle:  blobstore.PermanentOnly,
		MimePrefix: "image/",
		Limit:      limit,
	}
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

func fromEntry(entry *blobstore.Entry) *StoredFile {
	return &StoredFile{
		ID:             entry.ID,
		Filename:       entry.Filename,
		Type:           entry.MimeType,
		Size:           entry.Size,
		Blob:           entry.Payload,
		ThumbnailBlob:  entry.Thumbnail,
		ThumbnailType:  entry.ThumbnailType,
		IsTemporary:    entry.Temporary,
		OriginTool:     entry.OriginTool,
		CreatedAt:      entry.CreatedAt,
		LastAccessedAt: entry.LastAccessedAt,
	}
}
