// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/toolshelf/lib/clock"
	"github.com/bureau-foundation/toolshelf/lib/sqlitepool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS files (
		id               TEXT PRIMARY KEY,
		filename         TEXT NOT NULL,
		mime_type        TEXT NOT NULL,
		size             INTEGER NOT NULL,
		is_temporary     INTEGER NOT NULL,
		origin_tool      TEXT NOT NULL DEFAULT '',
		created_at       INTEGER NOT NULL,
		last_accessed_at INTEGER NOT NULL,
		encoding         INTEGER NOT NULL,
		digest           BLOB NOT NULL,
		payload          BLOB,
		thumbnail_type   TEXT NOT NULL DEFAULT '',
		thumbnail        BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_files_lifecycle ON files(is_temporary, mime_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_files_created ON files(created_at);
`

// Config holds the parameters for opening a Store.
type Config struct {
	// Pool is the database. Required. The Store does not close it.
	Pool *sqlitepool.Pool

	// Clock stamps created_at and last_accessed_at. Required.
	Clock clock.Clock

	// Logger receives operational messages. Nil discards them.
	Logger *slog.Logger

	// MaxTotalBytes caps the summed payload size across all entries.
	// Zero means unlimited.
	MaxTotalBytes int64
}

// Store is the SQLite-backed blob store. Safe for concurrent use.
type Store struct {
	pool     *sqlitepool.Pool
	clock    clock.Clock
	logger   *slog.Logger
	maxBytes int64
}

// Open creates the files table if needed and returns a Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("blobstore: Pool is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("blobstore: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := cfg.Pool.EnsureSchema(ctx, schema); err != nil {
		return nil, fmt.Errorf("blobstore: %w", err)
	}

	return &Store{
		pool:     cfg.Pool,
		clock:    cfg.Clock,
		logger:   logger,
		maxBytes: cfg.MaxTotalBytes,
	}, nil
}

// Put stores payload under a new id. When a quota is configured the
// size check and the insert run in one IMMEDIATE transaction, so two
// concurrent puts cannot both slip under the limit.
func (s *Store) Put(ctx context.Context, payload []byte, meta Metadata) (id string, err error) {
	if meta.MimeType == "" {
		meta.MimeType = "application/octet-stream"
	}

	encoded, encoding, err := encodePayload(payload, meta.MimeType)
	if err != nil {
		return "", fmt.Errorf("blobstore: encode payload: %w", err)
	}
	digest := digestPayload(payload)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("blobstore: put: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return "", fmt.Errorf("blobstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if s.maxBytes > 0 {
		var total int64
		err = sqlitex.Execute(conn, "SELECT COALESCE(SUM(size), 0) FROM files", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				total = stmt.ColumnInt64(0)
				return nil
			},
		})
		if err != nil {
			return "", fmt.Errorf("blobstore: quota check: %w", err)
		}
		if total+int64(len(payload)) > s.maxBytes {
			err = fmt.Errorf("%w: %d stored + %d new > %d", ErrQuotaExceeded, total, len(payload), s.maxBytes)
			return "", err
		}
	}

	id = NewID()
	now := s.clock.Now().UnixNano()
	err = sqlitex.Execute(conn, `INSERT INTO files
		(id, filename, mime_type, size, is_temporary, origin_tool,
		 created_at, last_accessed_at, encoding, digest, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			id,
			meta.Filename,
			meta.MimeType,
			int64(len(payload)),
			boolInt(meta.Temporary),
			meta.OriginTool,
			now,
			now,
			int(encoding),
			digest[:],
			encoded,
		},
	})
	if err != nil {
		return "", fmt.Errorf("blobstore: insert: %w", err)
	}

	s.logger.Debug("blob stored",
		"file_id", id,
		"mime_type", meta.MimeType,
		"size", len(payload),
		"stored_size", len(encoded),
		"encoding", encoding.String(),
	)
	return id, nil
}

const selectColumns = `id, filename, mime_type, size, is_temporary, origin_tool,
	created_at, last_accessed_at, encoding, digest, thumbnail_type, thumbnail`

// Get returns the entry with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	return s.get(ctx, id, true)
}

// Stat returns the entry's metadata and thumbnail without reading or
// verifying the payload, or ErrNotFound.
func (s *Store) Stat(ctx context.Context, id string) (*Entry, error) {
	return s.get(ctx, id, false)
}

func (s *Store) get(ctx context.Context, id string, withPayload bool) (*Entry, error) {
	columns := selectColumns
	if withPayload {
		columns += ", payload"
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: get: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		entry   *Entry
		scanErr error
	)
	err = sqlitex.Execute(conn, "SELECT "+columns+" FROM files WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entry, scanErr = scanEntry(stmt, withPayload)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", id, err)
	}
	if scanErr != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", id, scanErr)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, nil
}

// Delete removes an entry and reports whether it existed. Deleting
// an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	changes, err := s.execChanges(ctx, "DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("blobstore: delete %s: %w", id, err)
	}
	return changes > 0, nil
}

// DeleteIfTemporary removes the entry only while it is still
// temporary. The check and the delete are one statement. Returns
// whether a row was removed.
func (s *Store) DeleteIfTemporary(ctx context.Context, id string) (bool, error) {
	changes, err := s.execChanges(ctx, "DELETE FROM files WHERE id = ? AND is_temporary = 1", id)
	if err != nil {
		return false, fmt.Errorf("blobstore: delete temporary %s: %w", id, err)
	}
	return changes > 0, nil
}

// MarkPermanent clears the temporary flag and, when filename is not
// empty, renames the entry in the same statement. Returns ErrNotFound
// for an absent id.
func (s *Store) MarkPermanent(ctx context.Context, id, filename string) error {
	changes, err := s.execChanges(ctx,
		"UPDATE files SET is_temporary = 0, filename = COALESCE(NULLIF(?, ''), filename) WHERE id = ?",
		filename, id)
	if err != nil {
		return fmt.Errorf("blobstore: mark permanent %s: %w", id, err)
	}
	if changes == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AttachThumbnail sets the derived preview on an existing entry.
// Returns ErrNotFound if the entry was deleted in the meantime; it
// never creates a row.
func (s *Store) AttachThumbnail(ctx context.Context, id string, thumbnail []byte, mimeType string) error {
	changes, err := s.execChanges(ctx,
		"UPDATE files SET thumbnail = ?, thumbnail_type = ? WHERE id = ?",
		thumbnail, mimeType, id)
	if err != nil {
		return fmt.Errorf("blobstore: attach thumbnail %s: %w", id, err)
	}
	if changes == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Touch sets last_accessed_at. Returns ErrNotFound for an absent id.
func (s *Store) Touch(ctx context.Context, id string, at time.Time) error {
	changes, err := s.execChanges(ctx,
		"UPDATE files SET last_accessed_at = ? WHERE id = ?", at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("blobstore: touch %s: %w", id, err)
	}
	if changes == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns entries matching filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	where, args := filter.clause()
	columns := selectColumns
	if !filter.WithoutPayload {
		columns += ", payload"
	}
	query := "SELECT " + columns + " FROM files" + where + " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: list: %w", err)
	}
	defer s.pool.Put(conn)

	var entries []*Entry
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entry, err := scanEntry(stmt, !filter.WithoutPayload)
			if err != nil {
				return fmt.Errorf("entry %s: %w", stmt.ColumnText(0), err)
			}
			entries = append(entries, entry)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: list: %w", err)
	}
	return entries, nil
}

// DeleteMatching removes every entry matching filter (Limit is
// ignored) and returns the removed ids.
func (s *Store) DeleteMatching(ctx context.Context, filter Filter) (ids []string, err error) {
	where, args := filter.clause()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: delete matching: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("blobstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, "SELECT id FROM files"+where, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: delete matching select: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err = sqlitex.Execute(conn, "DELETE FROM files"+where, &sqlitex.ExecOptions{Args: args})
	if err != nil {
		return nil, fmt.Errorf("blobstore: delete matching: %w", err)
	}
	return ids, nil
}

// Usage returns entry counts and byte totals.
func (s *Store) Usage(ctx context.Context) (Usage, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("blobstore: usage: %w", err)
	}
	defer s.pool.Put(conn)

	var usage Usage
	err = sqlitex.Execute(conn, `SELECT is_temporary, COUNT(*), COALESCE(SUM(size), 0),
		COALESCE(SUM(length(thumbnail)), 0) FROM files GROUP BY is_temporary`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count := stmt.ColumnInt(1)
			bytes := stmt.ColumnInt64(2)
			if stmt.ColumnInt(0) == 1 {
				usage.TemporaryCount, usage.TemporaryBytes = count, bytes
			} else {
				usage.PermanentCount, usage.PermanentBytes = count, bytes
			}
			usage.ThumbnailBytes += stmt.ColumnInt64(3)
			return nil
		},
	})
	if err != nil {
		return Usage{}, fmt.Errorf("blobstore: usage: %w", err)
	}
	return usage, nil
}

// execChanges runs a single write statement and returns the number of
// rows it changed.
func (s *Store) execChanges(ctx context.Context, query string, args ...any) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return 0, err
	}
	return conn.Changes(), nil
}

// clause renders the filter as a WHERE clause with positional args.
func (f Filter) clause() (string, []any) {
	var (
		conditions []string
		args       []any
	)
	switch f.Lifecycle {
	case TemporaryOnly:
		conditions = append(conditions, "is_temporary = 1")
	case PermanentOnly:
		conditions = append(conditions, "is_temporary = 0")
	}
	if f.MimePrefix != "" {
		// substr instead of LIKE so "_" and "%" in the prefix are literal.
		conditions = append(conditions, "substr(mime_type, 1, ?) = ?")
		args = append(args, len(f.MimePrefix), f.MimePrefix)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// scanEntry reads one row laid out as selectColumns, optionally
// followed by the payload column.
func scanEntry(stmt *sqlite.Stmt, withPayload bool) (*Entry, error) {
	entry := &Entry{
		ID:             stmt.ColumnText(0),
		Filename:       stmt.ColumnText(1),
		MimeType:       stmt.ColumnText(2),
		Size:           stmt.ColumnInt64(3),
		Temporary:      stmt.ColumnInt(4) == 1,
		OriginTool:     stmt.ColumnText(5),
		CreatedAt:      time.Unix(0, stmt.ColumnInt64(6)).UTC(),
		LastAccessedAt: time.Unix(0, stmt.ColumnInt64(7)).UTC(),
		ThumbnailType:  stmt.ColumnText(10),
	}
	if stmt.ColumnType(11) != sqlite.TypeNull {
		entry.Thumbnail = columnBlob(stmt, 11)
	}
	if !withPayload {
		return entry, nil
	}

	var digest Digest
	if stmt.ColumnLen(9) != len(digest) {
		return nil, fmt.Errorf("%w: digest is %d bytes", ErrCorrupt, stmt.ColumnLen(9))
	}
	stmt.ColumnBytes(9, digest[:])

	payload, err := decodePayload(columnBlob(stmt, 12), Encoding(stmt.ColumnInt(8)), entry.Size, digest)
	if err != nil {
		return nil, err
	}
	entry.Payload = payload
	return entry, nil
}

func columnBlob(stmt *sqlite.Stmt, column int) []byte {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	return data
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
