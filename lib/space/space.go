// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/weft-foundation/weft/lib/capability"
	"github.com/weft-foundation/weft/lib/clock"
	"github.com/weft-foundation/weft/lib/content"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/schema"
	"github.com/weft-foundation/weft/lib/secret"
	"github.com/weft-foundation/weft/lib/sqlitepool"
)

var (
	// ErrSchemaNotFound is returned when an operation names a schema
	// digest or title the registry does not know.
	ErrSchemaNotFound = errors.New("space: schema not found")

	// ErrUnauthorized is returned when a caller's capability chain
	// does not grant the requested operation.
	ErrUnauthorized = errors.New("space: unauthorized")

	// ErrMalformedInput is returned when a request is structurally
	// invalid before any policy or schema check applies.
	ErrMalformedInput = errors.New("space: malformed input")
)

// spaceSchema is the DDL for the event log and the capability wallet.
// The schema and row_id columns denormalize the corresponding tags for
// indexed folds; the tags column keeps the full tag list verbatim so a
// loaded event reproduces its exact identity preimage.
const spaceSchema = `
	CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		pubkey     TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		kind       INTEGER NOT NULL,
		schema     TEXT,
		row_id     TEXT,
		content    TEXT NOT NULL,
		tags       TEXT NOT NULL,
		sig        BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_row ON events(schema, row_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_time ON events(created_at);

	CREATE TABLE IF NOT EXISTS capabilities (
		nonce      TEXT PRIMARY KEY,
		issuer     TEXT NOT NULL,
		audience   TEXT NOT NULL,
		subject    TEXT NOT NULL,
		command    TEXT NOT NULL,
		expires_at INTEGER,
		not_before INTEGER,
		token      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_capabilities_audience ON capabilities(audience);
`

// Config holds the parameters for opening a space.
type Config struct {
	// Path is the filesystem path of the space database. Required.
	// The parent directory must exist.
	Path string

	// Signer is the space's own identity. It signs registry events,
	// acts as the default author for appends, and its public key is
	// always a trusted capability root. Required.
	Signer event.Signer

	// Clock supplies event timestamps and capability time checks.
	// Required; inject clock.Fake() in tests.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger

	// Validator checks row values against schema definitions. If nil,
	// a CUE validator is used.
	Validator schema.Validator

	// Roots are additional trusted capability roots beyond the space
	// identity. A chain issued by any root can delegate access to
	// this space.
	Roots []event.PubKey

	// PoolSize is the SQLite connection pool size. Zero means the
	// pool default.
	PoolSize int

	// ContentKey enables at-rest encryption of content blobs when
	// set. The key is borrowed, not owned: the caller closes it after
	// the space is closed.
	ContentKey *secret.Buffer
}

// Space is an open space database. Safe for concurrent use.
type Space struct {
	pool      *sqlitepool.Pool
	content   content.Store
	validator schema.Validator
	clock     clock.Clock
	logger    *slog.Logger
	signer    event.Signer
	owner     event.PubKey
	roots     []event.PubKey

	// locks serializes appends per schema digest.
	mu    sync.Mutex
	locks map[digest.Digest]*sync.Mutex

	// regMu guards the schema registry caches and serializes registry
	// writes.
	regMu   sync.Mutex
	byHash  map[digest.Digest]*Schema
	byTitle map[string]*Schema
}

// Open opens (creating if necessary) the space database at cfg.Path,
// applies migrations, loads the schema registry from the log, and
// seeds the builtin schemas on first open.
func Open(ctx context.Context, cfg Config) (*Space, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("space: Path is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("space: Signer is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("space: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("space: Logger is required")
	}
	validator := cfg.Validator
	if validator == nil {
		validator = schema.NewCUEValidator()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("space: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	var store content.Store
	if cfg.ContentKey != nil {
		store, err = content.NewEncryptedSQLite(ctx, pool, cfg.ContentKey)
	} else {
		store, err = content.NewSQLite(ctx, pool)
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("space: %w", err)
	}

	owner := cfg.Signer.PubKey()
	roots := slices.Clone(cfg.Roots)
	if !slices.Contains(roots, owner) {
		roots = append(roots, owner)
	}

	s := &Space{
		pool:      pool,
		content:   store,
		validator: validator,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		signer:    cfg.Signer,
		owner:     owner,
		roots:     roots,
		locks:     make(map[digest.Digest]*sync.Mutex),
		byHash:    make(map[digest.Digest]*Schema),
		byTitle:   make(map[string]*Schema),
	}

	if err := s.loadRegistry(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.seedBuiltins(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.regMu.Lock()
	schemas := len(s.byTitle)
	s.regMu.Unlock()
	cfg.Logger.Info("space opened",
		"path", cfg.Path,
		"owner", owner.Short(),
		"schemas", schemas)
	return s, nil
}

func migrate(ctx context.Context, pool *sqlitepool.Pool) error {
	conn, err := pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("space: %w", err)
	}
	defer pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, spaceSchema, nil); err != nil {
		return fmt.Errorf("space: applying migrations: %w", err)
	}
	return nil
}

// Close releases the space's database connections. The space must not
// be used after Close.
func (s *Space) Close() error {
	return s.pool.Close()
}

// Owner returns the public key of the space identity.
func (s *Space) Owner() event.PubKey {
	return s.owner
}

// Content returns the space's content store. Exposed for export and
// import, which move blobs in bulk alongside events.
func (s *Space) Content() content.Store {
	return s.content
}

// isRoot reports whether pk is a trusted capability root for this
// space.
func (s *Space) isRoot(pk event.PubKey) bool {
	return slices.Contains(s.roots, pk)
}

// Authorize evaluates a capability chain against this space's trusted
// roots. A root caller with no chain is allowed outright; everyone
// else needs a chain that delegates the requested command. A zero
// req.At is filled from the space clock.
func (s *Space) Authorize(req capability.Request, chain []*capability.Token) capability.Decision {
	if req.At.IsZero() {
		req.At = s.clock.Now()
	}
	if len(chain) == 0 && s.isRoot(req.Caller) {
		return capability.Decision{Allowed: true, Command: req.Command, Link: -1}
	}
	return capability.Authorize(req, chain, s.roots)
}

// schemaLock returns the append mutex for a schema digest, creating it
// on first use.
func (s *Space) schemaLock(d digest.Digest) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[d]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[d] = lock
	}
	return lock
}

// Stats summarizes the space's contents.
type Stats struct {
	// Events is the total number of events in the log, registry
	// events included.
	Events int64

	// Schemas is the number of live titles in the registry.
	Schemas int

	// Capabilities is the number of stored delegation tokens.
	Capabilities int64

	// Blobs and BlobBytes count content store entries and their
	// uncompressed sizes.
	Blobs     int64
	BlobBytes int64
}

// Stats reports log, registry, and content store counts.
func (s *Space) Stats(ctx context.Context) (Stats, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("space: %w", err)
	}
	defer s.pool.Put(conn)

	var stats Stats
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM events`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stats.Events = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("space: counting events: %w", err)
	}

	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM capabilities`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stats.Capabilities = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("space: counting capabilities: %w", err)
	}

	err = sqlitex.Execute(conn, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM content`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stats.Blobs = stmt.ColumnInt64(0)
			stats.BlobBytes = stmt.ColumnInt64(1)
			return nil
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("space: counting content: %w", err)
	}

	s.regMu.Lock()
	stats.Schemas = len(s.byTitle)
	s.regMu.Unlock()
	return stats, nil
}
