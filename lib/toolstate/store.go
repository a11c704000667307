// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolstate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/toolshelf/lib/clock"
	"github.com/bureau-foundation/toolshelf/lib/codec"
	"github.com/bureau-foundation/toolshelf/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS tool_state (
	route      TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// StoreConfig holds the dependencies of a Store.
type StoreConfig struct {
	// Pool provides connections. Required. The caller owns its
	// lifetime.
	Pool *sqlitepool.Pool

	// Clock stamps updated_at. Required.
	Clock clock.Clock

	// Logger receives debug messages. Nil discards them.
	Logger *slog.Logger
}

// Store reads and writes raw state documents. Safe for concurrent
// use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// RouteInfo summarizes one persisted state document.
type RouteInfo struct {
	Route     string
	Size      int
	UpdatedAt time.Time
}

// OpenStore creates the tool_state table if needed.
func OpenStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("toolstate: Pool is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("toolstate: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Pool.EnsureSchema(ctx, schema); err != nil {
		return nil, fmt.Errorf("toolstate: %w", err)
	}
	return &Store{pool: cfg.Pool, clock: cfg.Clock, logger: logger}, nil
}

// Load returns the encoded document for route and whether one exists.
func (s *Store) Load(ctx context.Context, route string) ([]byte, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("toolstate: load %s: %w", route, err)
	}
	defer s.pool.Put(conn)

	var data []byte
	found := false
	err = sqlitex.Execute(conn, "SELECT data FROM tool_state WHERE route = ?", &sqlitex.ExecOptions{
		Args: []any{route},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("toolstate: load %s: %w", route, err)
	}
	return data, found, nil
}

// LoadRaw decodes the document for route into a generic map. Used by
// readers that do not know the tool's state type. A document that is
// not a map is an error.
func (s *Store) LoadRaw(ctx context.Context, route string) (map[string]any, bool, error) {
	data, found, err := s.Load(ctx, route)
	if err != nil || !found {
		return nil, found, err
	}
	var state map[string]any
	if err := codec.Unmarshal(data, &state); err != nil {
		return nil, true, fmt.Errorf("toolstate: decode %s: %w", route, err)
	}
	if state == nil {
		state = map[string]any{}
	}
	return state, true, nil
}

// Save replaces the document for route.
func (s *Store) Save(ctx context.Context, route string, data []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("toolstate: save %s: %w", route, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO tool_state (route, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(route) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{route, data, s.clock.Now().UnixNano()}})
	if err != nil {
		return fmt.Errorf("toolstate: save %s: %w", route, err)
	}
	s.logger.Debug("tool state saved", "route", route, "size", len(data))
	return nil
}

// Delete removes the document for route. Deleting a missing route is
// not an error.
func (s *Store) Delete(ctx context.Context, route string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("toolstate: delete %s: %w", route, err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, "DELETE FROM tool_state WHERE route = ?", &sqlitex.ExecOptions{
		Args: []any{route},
	}); err != nil {
		return fmt.Errorf("toolstate: delete %s: %w", route, err)
	}
	return nil
}

// Routes lists every persisted document, ordered by route.
func (s *Store) Routes(ctx context.Context) ([]RouteInfo, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("toolstate: routes: %w", err)
	}
	defer s.pool.Put(conn)

	var routes []RouteInfo
	err = sqlitex.Execute(conn, "SELECT route, length(data), updated_at FROM tool_state ORDER BY route", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			routes = append(routes, RouteInfo{
				Route:     stmt.ColumnText(0),
				Size:      stmt.ColumnInt(1),
				UpdatedAt: time.Unix(0, stmt.ColumnInt64(2)).UTC(),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("toolstate: routes: %w", err)
	}
	return routes, nil
}
