// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maruel/ksid"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/weft-foundation/weft/lib/capability"
	"github.com/weft-foundation/weft/lib/content"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/hashlink"
	"github.com/weft-foundation/weft/lib/schema"
)

// tombstoneValue is the content document tombstone events link.
// Deletes carry no caller value, but every event addresses content.
var tombstoneValue = []byte(`{}`)

// AppendRequest describes one write to the log.
type AppendRequest struct {
	// Schema is the definition digest the value must conform to.
	// Required. Superseded versions are accepted: rows may still be
	// written against an older definition by naming its digest.
	Schema digest.Digest

	// Author signs the event. Nil means the space identity.
	Author event.Signer

	// RowID names the row to mutate or delete. Empty on a mutate
	// creates a fresh row id; empty on a delete is an error.
	RowID string

	// Value is the row's JSON document. Required for mutates, must be
	// absent for deletes.
	Value []byte

	// Delete appends a tombstone instead of a mutation.
	Delete bool

	// Chain authorizes the write for non-root authors. Root authors
	// with an empty chain act directly.
	Chain []*capability.Token
}

// Append validates, authorizes, signs, and stores one event. The
// content document is filed in the content store before the event
// enters the log, so a failure between the two steps leaves at worst
// an orphaned blob, never a dangling event. Appends for the same
// schema are serialized; failures are terminal and append nothing.
//
// The returned event carries its content inline.
func (s *Space) Append(ctx context.Context, req AppendRequest) (*event.Event, error) {
	rec, err := s.SchemaByDigest(req.Schema)
	if err != nil {
		return nil, err
	}

	author := req.Author
	if author == nil {
		author = s.signer
	}

	if req.Delete && req.RowID == "" {
		return nil, fmt.Errorf("%w: delete requires a row id", ErrMalformedInput)
	}
	if req.Delete && req.Value != nil {
		return nil, fmt.Errorf("%w: delete carries no value", ErrMalformedInput)
	}

	value := req.Value
	if req.Delete {
		value = tombstoneValue
	} else if err := s.validator.Validate(rec.Definition(), value); err != nil {
		return nil, err
	}

	rowID := req.RowID
	if rowID == "" {
		rowID = ksid.NewID().String()
	}

	if err := s.authorizeAppend(author.PubKey(), req.Schema, rowID, req.Chain); err != nil {
		return nil, err
	}

	link, err := hashlink.FromValue(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	inline, _ := link.Value()
	if _, err := s.content.Put(ctx, inline); err != nil {
		return nil, fmt.Errorf("space: storing content: %w", err)
	}

	mutate, tombstone := schema.KindsFor(rec.Title)
	kind := mutate
	if req.Delete {
		kind = tombstone
	}

	lock := s.schemaLock(req.Schema)
	lock.Lock()
	defer lock.Unlock()

	tags := []event.Tag{event.SchemaTag(req.Schema), event.RowIDTag(rowID)}
	ev, err := event.New(author, s.clock.Now().Unix(), kind, tags, link)
	if err != nil {
		return nil, fmt.Errorf("space: %w", err)
	}
	if err := s.insertEvent(ctx, ev); err != nil {
		return nil, err
	}

	s.logger.Debug("event appended",
		"event", ev.ID.Short(),
		"kind", ev.Kind,
		"schema", digest.Short(req.Schema),
		"row", rowID)
	return &ev, nil
}

// authorizeAppend admits root authors directly and evaluates everyone
// else's chain against /evt/write on the schema's digest.
func (s *Space) authorizeAppend(author event.PubKey, d digest.Digest, rowID string, chain []*capability.Token) error {
	decision := s.Authorize(capability.Request{
		Subject: digest.Format(d),
		Command: capability.CommandEventWrite,
		Caller:  author,
		Params: map[string]any{
			"schema": digest.Format(d),
			"row_id": rowID,
		},
	}, chain)
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", ErrUnauthorized, decision.Reason)
	}
	return nil
}

// Ingest verifies and stores an event produced elsewhere, typically
// from an import bundle. Inline content is filed in the content store;
// detached content must already be present. Re-ingesting an event the
// log already holds is a no-op.
//
// Ingest trusts signatures, not capabilities: authorization happened
// where the event was first appended.
func (s *Space) Ingest(ctx context.Context, ev event.Event) error {
	if err := ev.Verify(); err != nil {
		return err
	}

	if value, ok := ev.Content.Value(); ok {
		if _, err := s.content.Put(ctx, value); err != nil {
			return fmt.Errorf("space: storing content: %w", err)
		}
	} else {
		ok, err := s.content.Has(ctx, ev.Content.Hash())
		if err != nil {
			return fmt.Errorf("space: %w", err)
		}
		if !ok {
			return fmt.Errorf("space: event %s content %s: %w",
				ev.ID.Short(), digest.Short(ev.Content.Hash()), content.ErrNotFound)
		}
	}
	return s.insertEvent(ctx, ev)
}

// insertEvent writes one event row. Inserting an event the log already
// holds is a no-op: event ids are content-derived, so an identical
// insert is the same event.
func (s *Space) insertEvent(ctx context.Context, ev event.Event) (err error) {
	tags, err := json.Marshal(ev.Tags)
	if err != nil {
		return fmt.Errorf("space: serializing tags: %w", err)
	}

	var schemaCol, rowCol any
	if v, ok := ev.Tag(event.TagSchema); ok {
		schemaCol = v
	}
	if v, ok := ev.Tag(event.TagRowID); ok {
		rowCol = v
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("space: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("space: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`INSERT OR IGNORE INTO events (id, pubkey, created_at, kind, schema, row_id, content, tags, sig)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				ev.ID.String(),
				ev.PubKey.String(),
				ev.CreatedAt,
				int64(ev.Kind),
				schemaCol,
				rowCol,
				digest.Format(ev.Content.Hash()),
				string(tags),
				ev.Sig[:],
			},
		})
	if err != nil {
		return fmt.Errorf("space: inserting event %s: %w", ev.ID.Short(), err)
	}
	return nil
}
