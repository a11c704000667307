// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite database that backs the blob
// store and the per-tool state store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the same
// pragmas to every connection: WAL journaling so readers never block
// the writer, synchronous=NORMAL, a five second busy timeout, and
// in-memory temp storage. Callers write SQL directly with sqlitex and
// manage transactions with sqlitex.ImmediateTransaction; there is no
// query layer.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{Path: dbPath, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//	if err := pool.EnsureSchema(ctx, schema); err != nil {
//	    return err
//	}
package sqlitepool
