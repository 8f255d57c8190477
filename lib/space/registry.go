// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"context"
	"fmt"
	"sort"

	"github.com/maruel/ksid"

	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/hashlink"
	"github.com/weft-foundation/weft/lib/schema"
)

// Schema is a registry record: one version of one titled schema. A
// title's versions form a sequence of definition digests; the last
// entry is the principal (current) version. Records are immutable
// snapshots of the registry at the time their event was appended.
type Schema struct {
	// Title is the definition's title field.
	Title string

	// RowID identifies the title's registry row. It is stable across
	// supersessions: every version of a title shares it.
	RowID string

	// Sequence is the title's version lineage as of this record. The
	// principal entry is this record's definition digest.
	Sequence hashlink.Sequence

	// Content addresses the principal definition document.
	Content hashlink.Link

	// CreatedAt and Author come from the registry event.
	CreatedAt int64
	Author    event.PubKey

	id  event.ID
	def *schema.Definition
}

// Definition returns the parsed principal definition.
func (r *Schema) Definition() *schema.Definition {
	return r.def
}

// Digest returns the principal definition's content digest.
func (r *Schema) Digest() digest.Digest {
	return r.Content.Hash()
}

// clone returns a copy safe to hand to callers. All fields are
// immutable values, so a shallow copy suffices.
func (r *Schema) clone() *Schema {
	c := *r
	return &c
}

// supersedes reports whether r wins over other as a title's current
// record. Same rule as event LWW: greatest createdAt, ties broken by
// event id. Distinct registry rows can share a title after an import,
// so the comparison cannot assume a shared row.
func (r *Schema) supersedes(other *Schema) bool {
	if r.CreatedAt != other.CreatedAt {
		return r.CreatedAt > other.CreatedAt
	}
	return r.id.String() > other.id.String()
}

// LoadOrCreateSchema registers a schema definition document, returning
// the existing record when the document (canonicalized) is already
// registered. A new document under an existing title supersedes it:
// the title's sequence gains the new digest and the registry row gains
// a new event. Loading never destroys: superseded versions remain
// addressable by digest.
//
// Registry events are signed by the space identity.
func (s *Space) LoadOrCreateSchema(ctx context.Context, doc []byte) (*Schema, error) {
	def, err := schema.Parse(doc)
	if err != nil {
		return nil, err
	}
	d := def.Digest()

	s.regMu.Lock()
	defer s.regMu.Unlock()

	if existing, ok := s.byHash[d]; ok {
		return existing.clone(), nil
	}

	if _, err := s.content.Put(ctx, def.Canonical()); err != nil {
		return nil, fmt.Errorf("space: storing definition: %w", err)
	}

	prior := s.byTitle[def.Title()]
	var seq hashlink.Sequence
	var rowID string
	if prior != nil {
		seq = prior.Sequence.Append(d)
		rowID = prior.RowID
	} else {
		seq = hashlink.SequenceOf(d)
		rowID = ksid.NewID().String()
	}

	canonical, err := seq.Canonical()
	if err != nil {
		return nil, fmt.Errorf("space: %w", err)
	}
	if _, err := s.content.Put(ctx, canonical); err != nil {
		return nil, fmt.Errorf("space: storing sequence: %w", err)
	}
	link, err := hashlink.FromValue(canonical)
	if err != nil {
		return nil, fmt.Errorf("space: %w", err)
	}

	// A supersede in the same second as the prior version must not
	// tie with it: ties resolve by event id, which could resurrect
	// the old version when the registry reloads.
	createdAt := s.clock.Now().Unix()
	if prior != nil && createdAt <= prior.CreatedAt {
		createdAt = prior.CreatedAt + 1
	}

	tags := []event.Tag{event.SchemaTag(d), event.RowIDTag(rowID)}
	ev, err := event.New(s.signer, createdAt, event.KindMutateSchema, tags, link)
	if err != nil {
		return nil, fmt.Errorf("space: signing registry event: %w", err)
	}
	if err := s.insertEvent(ctx, ev); err != nil {
		return nil, err
	}

	rec := &Schema{
		Title:     def.Title(),
		RowID:     rowID,
		Sequence:  seq,
		Content:   hashlink.New(d),
		CreatedAt: ev.CreatedAt,
		Author:    ev.PubKey,
		id:        ev.ID,
		def:       def,
	}
	s.byHash[d] = rec
	s.byTitle[rec.Title] = rec

	s.logger.Info("schema registered",
		"title", rec.Title,
		"digest", digest.Short(d),
		"version", seq.Len())
	return rec.clone(), nil
}

// SchemaByDigest returns the registry record for a definition digest.
// Superseded versions resolve as well as current ones.
func (s *Space) SchemaByDigest(d digest.Digest) (*Schema, error) {
	s.regMu.Lock()
	defer s.regMu.Unlock()

	rec, ok := s.byHash[d]
	if !ok {
		return nil, fmt.Errorf("%w: digest %s", ErrSchemaNotFound, digest.Short(d))
	}
	return rec.clone(), nil
}

// SchemaByTitle returns the current version of a titled schema.
func (s *Space) SchemaByTitle(title string) (*Schema, error) {
	s.regMu.Lock()
	defer s.regMu.Unlock()

	rec, ok := s.byTitle[title]
	if !ok {
		return nil, fmt.Errorf("%w: title %q", ErrSchemaNotFound, title)
	}
	return rec.clone(), nil
}

// Schemas lists the current version of every title, ordered by title.
// Offset skips that many records; limit -1 means all remaining.
func (s *Space) Schemas(offset, limit int) ([]*Schema, error) {
	if offset < 0 || limit < -1 {
		return nil, fmt.Errorf("%w: offset %d, limit %d", ErrMalformedInput, offset, limit)
	}

	s.regMu.Lock()
	records := make([]*Schema, 0, len(s.byTitle))
	for _, rec := range s.byTitle {
		records = append(records, rec.clone())
	}
	s.regMu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].Title < records[j].Title })
	return paginate(records, offset, limit), nil
}

// RefreshRegistry rebuilds the registry caches from the log. Called
// after bulk ingest, which may have inserted registry events.
func (s *Space) RefreshRegistry(ctx context.Context) error {
	return s.loadRegistry(ctx)
}

// loadRegistry folds the registry events in the log into the byHash
// and byTitle caches. Every mutate event's definition becomes
// addressable by digest; per registry row, the event with the greatest
// (createdAt, id) decides the title's current version, and a winning
// tombstone removes the title.
func (s *Space) loadRegistry(ctx context.Context) error {
	events, err := s.Events(ctx, EventSelection{
		Kinds: []event.Kind{event.KindMutateSchema, event.KindDeleteSchema},
	})
	if err != nil {
		return err
	}

	byHash := make(map[digest.Digest]*Schema)
	byTitle := make(map[string]*Schema)
	type rowState struct {
		winner event.Event
		rec    *Schema
	}
	rows := make(map[string]*rowState)

	for _, ev := range events {
		rowID, err := ev.RowID()
		if err != nil {
			s.logger.Warn("registry event has no row id", "event", ev.ID.Short())
			continue
		}

		var rec *Schema
		if ev.Kind == event.KindMutateSchema {
			rec, err = s.resolveSchemaEvent(ctx, ev, rowID)
			if err != nil {
				s.logger.Warn("registry event unresolvable",
					"event", ev.ID.Short(),
					"error", err)
				continue
			}
			byHash[rec.Digest()] = rec
		}

		state, ok := rows[rowID]
		if !ok || ev.Supersedes(state.winner) {
			rows[rowID] = &rowState{winner: ev, rec: rec}
		}
	}

	for _, state := range rows {
		if state.winner.Kind.IsDelete() || state.rec == nil {
			continue
		}
		if current, ok := byTitle[state.rec.Title]; ok && !state.rec.supersedes(current) {
			continue
		}
		byTitle[state.rec.Title] = state.rec
	}

	s.regMu.Lock()
	s.byHash = byHash
	s.byTitle = byTitle
	s.regMu.Unlock()
	return nil
}

// resolveSchemaEvent loads the sequence and principal definition a
// registry event addresses.
func (s *Space) resolveSchemaEvent(ctx context.Context, ev event.Event, rowID string) (*Schema, error) {
	seqDoc, err := ev.Content.Resolve(ctx, s.content)
	if err != nil {
		return nil, err
	}
	seq, err := hashlink.ParseSequence(seqDoc)
	if err != nil {
		return nil, err
	}
	principal, ok := seq.Principal()
	if !ok {
		return nil, fmt.Errorf("space: registry event %s has an empty sequence", ev.ID.Short())
	}
	doc, err := s.content.Get(ctx, principal)
	if err != nil {
		return nil, err
	}
	def, err := schema.Parse(doc)
	if err != nil {
		return nil, err
	}
	return &Schema{
		Title:     def.Title(),
		RowID:     rowID,
		Sequence:  seq,
		Content:   hashlink.New(principal),
		CreatedAt: ev.CreatedAt,
		Author:    ev.PubKey,
		id:        ev.ID,
		def:       def,
	}, nil
}

// seedBuiltins registers the builtin schemas. Idempotent: on every
// open after the first, the builtins' digests are already registered.
func (s *Space) seedBuiltins(ctx context.Context) error {
	builtins, err := schema.Builtins()
	if err != nil {
		return fmt.Errorf("space: %w", err)
	}
	for _, def := range builtins {
		if _, err := s.LoadOrCreateSchema(ctx, def.Canonical()); err != nil {
			return fmt.Errorf("space: seeding %s: %w", def.Title(), err)
		}
	}
	return nil
}
