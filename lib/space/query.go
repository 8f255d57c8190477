// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/hashlink"
	"github.com/weft-foundation/weft/lib/schema"
)

// Filter restricts a query to a subset of rows. The zero Filter
// matches every row.
type Filter struct {
	// RowIDs, when non-empty, keeps only rows with one of the given
	// ids.
	RowIDs []string

	// Contains, when non-empty, keeps only rows whose resolved
	// content contains the substring.
	Contains string
}

func (f Filter) matchRowID(id string) bool {
	return len(f.RowIDs) == 0 || slices.Contains(f.RowIDs, id)
}

// QueryRequest selects rows of one schema.
type QueryRequest struct {
	// Schema is the definition digest to project. Required.
	Schema digest.Digest

	// Filter restricts the result set before pagination.
	Filter Filter

	// Offset skips that many rows; Limit caps the result, with -1
	// meaning all remaining rows.
	Offset int
	Limit  int
}

// Row is one projected row: the winning event's content for a row id,
// resolved inline.
type Row struct {
	RowID     string
	Schema    digest.Digest
	Content   hashlink.Link
	CreatedAt int64
	Author    event.PubKey
}

// Value returns the row's resolved content document.
func (r Row) Value() []byte {
	value, _ := r.Content.Value()
	return value
}

// Query folds the log into the current rows of a schema. For each row
// id, the event with the greatest (createdAt, id) wins; a winning
// tombstone removes the row from the result entirely. Rows come back
// ordered by ascending row id with their content resolved inline.
//
// The fold runs in a single statement, so it sees a consistent
// snapshot of the log and never blocks appends.
func (s *Space) Query(ctx context.Context, req QueryRequest) ([]Row, error) {
	if req.Offset < 0 || req.Limit < -1 {
		return nil, fmt.Errorf("%w: offset %d, limit %d", ErrMalformedInput, req.Offset, req.Limit)
	}
	rec, err := s.SchemaByDigest(req.Schema)
	if err != nil {
		return nil, err
	}

	mutate, tombstone := schema.KindsFor(rec.Title)
	winners, err := s.scanWinners(ctx, req.Schema, mutate, tombstone)
	if err != nil {
		return nil, err
	}

	live := winners[:0]
	for _, w := range winners {
		if w.kind.IsDelete() || !req.Filter.matchRowID(w.rowID) {
			continue
		}
		live = append(live, w)
	}

	// Without a content filter, pagination happens before resolution
	// so only the requested page touches the content store.
	if req.Filter.Contains == "" {
		return s.resolveRows(ctx, req.Schema, paginate(live, req.Offset, req.Limit))
	}

	rows, err := s.resolveRows(ctx, req.Schema, live)
	if err != nil {
		return nil, err
	}
	matched := rows[:0]
	for _, row := range rows {
		if strings.Contains(string(row.Value()), req.Filter.Contains) {
			matched = append(matched, row)
		}
	}
	return paginate(matched, req.Offset, req.Limit), nil
}

// rowWinner is the surviving event of the fold for one row id, before
// content resolution.
type rowWinner struct {
	rowID     string
	createdAt int64
	kind      event.Kind
	author    event.PubKey
	content   digest.Digest
}

// scanWinners walks the schema's events ordered so that the first
// event seen for each row id is its winner. The connection is released
// before any content resolution happens.
func (s *Space) scanWinners(ctx context.Context, d digest.Digest, mutate, tombstone event.Kind) ([]rowWinner, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("space: %w", err)
	}
	defer s.pool.Put(conn)

	var winners []rowWinner
	err = sqlitex.Execute(conn,
		`SELECT row_id, created_at, kind, pubkey, content FROM events
		 WHERE schema = ? AND kind IN (?, ?) AND row_id IS NOT NULL
		 ORDER BY row_id ASC, created_at DESC, id DESC`,
		&sqlitex.ExecOptions{
			Args: []any{digest.Format(d), int64(mutate), int64(tombstone)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rowID := stmt.ColumnText(0)
				if len(winners) > 0 && winners[len(winners)-1].rowID == rowID {
					return nil
				}
				author, err := event.ParsePubKey(stmt.ColumnText(3))
				if err != nil {
					return fmt.Errorf("row %s: %w", rowID, err)
				}
				contentHash, err := digest.Parse(stmt.ColumnText(4))
				if err != nil {
					return fmt.Errorf("row %s: %w", rowID, err)
				}
				winners = append(winners, rowWinner{
					rowID:     rowID,
					createdAt: stmt.ColumnInt64(1),
					kind:      event.Kind(stmt.ColumnInt64(2)),
					author:    author,
					content:   contentHash,
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("space: folding rows: %w", err)
	}
	return winners, nil
}

// resolveRows fetches each winner's content and inlines it.
func (s *Space) resolveRows(ctx context.Context, d digest.Digest, winners []rowWinner) ([]Row, error) {
	rows := make([]Row, 0, len(winners))
	for _, w := range winners {
		data, err := s.content.Get(ctx, w.content)
		if err != nil {
			return nil, fmt.Errorf("space: resolving row %s: %w", w.rowID, err)
		}
		link, err := hashlink.FromValue(data)
		if err != nil {
			return nil, fmt.Errorf("space: resolving row %s: %w", w.rowID, err)
		}
		rows = append(rows, Row{
			RowID:     w.rowID,
			Schema:    d,
			Content:   link,
			CreatedAt: w.createdAt,
			Author:    w.author,
		})
	}
	return rows, nil
}

// EventSelection restricts an Events scan. The zero selection returns
// the whole log.
type EventSelection struct {
	// Schemas, when non-empty, keeps only events tagged with one of
	// the given definition digests.
	Schemas []digest.Digest

	// Kinds, when non-empty, keeps only events of the given kinds.
	Kinds []event.Kind

	// Since, when positive, keeps only events with createdAt >= Since.
	Since int64
}

// Events returns raw log events in (createdAt, id) order with detached
// content links. Export and the registry fold build on this; neither
// signature verification nor content resolution happens here.
func (s *Space) Events(ctx context.Context, sel EventSelection) ([]event.Event, error) {
	query := `SELECT id, pubkey, created_at, kind, content, tags, sig FROM events`
	var conds []string
	var args []any
	if len(sel.Kinds) > 0 {
		conds = append(conds, `kind IN (`+placeholders(len(sel.Kinds))+`)`)
		for _, k := range sel.Kinds {
			args = append(args, int64(k))
		}
	}
	if len(sel.Schemas) > 0 {
		conds = append(conds, `schema IN (`+placeholders(len(sel.Schemas))+`)`)
		for _, d := range sel.Schemas {
			args = append(args, digest.Format(d))
		}
	}
	if sel.Since > 0 {
		conds = append(conds, `created_at >= ?`)
		args = append(args, sel.Since)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("space: %w", err)
	}
	defer s.pool.Put(conn)

	var events []event.Event
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ev, err := eventFromStmt(stmt)
			if err != nil {
				return err
			}
			events = append(events, ev)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("space: scanning events: %w", err)
	}
	return events, nil
}

// HasEvent reports whether an event is already in the log. Importers
// use it to count new versus known events before ingesting.
func (s *Space) HasEvent(ctx context.Context, id event.ID) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("space: %w", err)
	}
	defer s.pool.Put(conn)

	var found bool
	err = sqlitex.Execute(conn, `SELECT 1 FROM events WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("space: %w", err)
	}
	return found, nil
}

// eventFromStmt rebuilds an event from a log row. Column order must
// match the SELECT in Events.
func eventFromStmt(stmt *sqlite.Stmt) (event.Event, error) {
	var ev event.Event
	var err error

	ev.ID, err = event.ParseID(stmt.ColumnText(0))
	if err != nil {
		return event.Event{}, err
	}
	ev.PubKey, err = event.ParsePubKey(stmt.ColumnText(1))
	if err != nil {
		return event.Event{}, err
	}
	ev.CreatedAt = stmt.ColumnInt64(2)
	ev.Kind = event.Kind(stmt.ColumnInt64(3))

	contentHash, err := digest.Parse(stmt.ColumnText(4))
	if err != nil {
		return event.Event{}, err
	}
	ev.Content = hashlink.New(contentHash)

	if err := json.Unmarshal([]byte(stmt.ColumnText(5)), &ev.Tags); err != nil {
		return event.Event{}, fmt.Errorf("event %s: parsing tags: %w", ev.ID.Short(), err)
	}

	sig := make([]byte, stmt.ColumnLen(6))
	stmt.ColumnBytes(6, sig)
	if len(sig) != len(ev.Sig) {
		return event.Event{}, fmt.Errorf("event %s: signature is %d bytes, want %d", ev.ID.Short(), len(sig), len(ev.Sig))
	}
	copy(ev.Sig[:], sig)
	return ev, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// paginate applies (offset, limit) slicing; limit -1 means all
// remaining.
func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
