// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"context"
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/secret"
)

// blobSchema is the content table DDL. The size column records the
// plaintext length (needed to decompress); data holds the compressed
// and possibly encrypted bytes.
const blobSchema = `
CREATE TABLE IF NOT EXISTS content (
	hash        TEXT PRIMARY KEY,
	size        INTEGER NOT NULL,
	compression INTEGER NOT NULL,
	data        BLOB NOT NULL
);
`

// Pool is the connection source for a SQLite content store. Satisfied
// by *sqlitepool.Pool.
type Pool interface {
	Take(ctx context.Context) (*sqlite.Conn, error)
	Put(conn *sqlite.Conn)
}

// SQLite is the production content store. It shares the space's
// connection pool and files blobs in a single content table,
// compressed with a probe-selected algorithm and, when a space
// content key is configured, encrypted at rest.
type SQLite struct {
	pool Pool

	// spaceKey is the space content key for at-rest encryption. Nil
	// means blobs are stored in plaintext.
	spaceKey *secret.Buffer
}

// NewSQLite opens a plaintext SQLite content store on the given pool,
// creating the content table if needed.
func NewSQLite(ctx context.Context, pool Pool) (*SQLite, error) {
	return newSQLite(ctx, pool, nil)
}

// NewEncryptedSQLite opens a SQLite content store that encrypts blobs
// at rest. The spaceKey must be exactly KeySize bytes; it is borrowed
// for the lifetime of the store and closed by the caller, not the
// store.
func NewEncryptedSQLite(ctx context.Context, pool Pool, spaceKey *secret.Buffer) (*SQLite, error) {
	if spaceKey.Len() != KeySize {
		return nil, fmt.Errorf("content: space content key must be %d bytes, got %d", KeySize, spaceKey.Len())
	}
	return newSQLite(ctx, pool, spaceKey)
}

func newSQLite(ctx context.Context, pool Pool, spaceKey *secret.Buffer) (*SQLite, error) {
	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	defer pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, blobSchema, nil); err != nil {
		return nil, fmt.Errorf("content: creating blob table: %w", err)
	}

	return &SQLite{
		pool:     pool,
		spaceKey: spaceKey,
	}, nil
}

// Put implements Store. Storing bytes that are already present skips
// the compression and encryption work entirely.
func (s *SQLite) Put(ctx context.Context, data []byte) (digest.Digest, error) {
	d := digest.SumContent(data)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("content: %w", err)
	}
	defer s.pool.Put(conn)

	exists, err := blobExists(conn, d)
	if err != nil {
		return digest.Digest{}, err
	}
	if exists {
		return d, nil
	}

	stored, tag, err := CompressBlobAuto(data)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("content: compressing %s: %w", digest.Short(d), err)
	}

	if s.spaceKey != nil {
		blobKey, err := DeriveBlobKey(s.spaceKey, d)
		if err != nil {
			return digest.Digest{}, fmt.Errorf("content: %w", err)
		}
		defer blobKey.Close()

		stored, err = EncryptBlob(stored, blobKey, d)
		if err != nil {
			return digest.Digest{}, fmt.Errorf("content: encrypting %s: %w", digest.Short(d), err)
		}
	}

	// OR IGNORE: a concurrent Put of the same bytes filed the row
	// first, which is fine since content rows are immutable.
	err = sqlitex.Execute(conn,
		`INSERT OR IGNORE INTO content (hash, size, compression, data) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{digest.Format(d), len(data), int(tag), stored},
		})
	if err != nil {
		return digest.Digest{}, fmt.Errorf("content: storing %s: %w", digest.Short(d), err)
	}
	return d, nil
}

// Get implements Store. The returned bytes are verified against the
// digest; damage at any layer (SQL page, cipher, compressor) surfaces
// as ErrCorrupt.
func (s *SQLite) Get(ctx context.Context, d digest.Digest) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		found  bool
		size   int
		tag    CompressionTag
		stored []byte
	)
	err = sqlitex.Execute(conn,
		`SELECT size, compression, data FROM content WHERE hash = ?`,
		&sqlitex.ExecOptions{
			Args: []any{digest.Format(d)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				size = stmt.ColumnInt(0)
				tag = CompressionTag(stmt.ColumnInt(1))
				stored = columnBlob(stmt, 2)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("content: reading %s: %w", digest.Short(d), err)
	}
	if !found {
		return nil, ErrNotFound
	}

	if s.spaceKey != nil {
		blobKey, err := DeriveBlobKey(s.spaceKey, d)
		if err != nil {
			return nil, fmt.Errorf("content: %w", err)
		}
		defer blobKey.Close()

		stored, err = DecryptBlob(stored, blobKey, d)
		if err != nil {
			return nil, errors.Join(ErrCorrupt, err)
		}
	}

	data, err := DecompressBlob(stored, tag, size)
	if err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}

	if digest.SumContent(data) != d {
		return nil, ErrCorrupt
	}
	return data, nil
}

// Has implements Store.
func (s *SQLite) Has(ctx context.Context, d digest.Digest) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("content: %w", err)
	}
	defer s.pool.Put(conn)

	return blobExists(conn, d)
}

// Stats returns the number of stored blobs and their total on-disk
// payload size in bytes (after compression and encryption).
func (s *SQLite) Stats(ctx context.Context) (count int64, storedBytes int64, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("content: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(data)), 0) FROM content`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt64(0)
				storedBytes = stmt.ColumnInt64(1)
				return nil
			},
		})
	if err != nil {
		return 0, 0, fmt.Errorf("content: reading stats: %w", err)
	}
	return count, storedBytes, nil
}

func blobExists(conn *sqlite.Conn, d digest.Digest) (bool, error) {
	var exists bool
	err := sqlitex.Execute(conn,
		`SELECT 1 FROM content WHERE hash = ?`,
		&sqlitex.ExecOptions{
			Args: []any{digest.Format(d)},
			ResultFunc: func(*sqlite.Stmt) error {
				exists = true
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("content: checking %s: %w", digest.Short(d), err)
	}
	return exists, nil
}

// columnBlob copies a BLOB column out of the statement. The statement
// owns its buffer only until the next step, so a copy is required.
func columnBlob(stmt *sqlite.Stmt, col int) []byte {
	buf := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, buf)
	return buf
}
