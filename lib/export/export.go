// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filippo.io/age"
	"github.com/maruel/ksid"

	"github.com/weft-foundation/weft/lib/capability"
	"github.com/weft-foundation/weft/lib/codec"
	"github.com/weft-foundation/weft/lib/content"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/hashlink"
	"github.com/weft-foundation/weft/lib/space"
)

// Selection scopes an export. The zero selection exports the whole
// log.
type Selection struct {
	// Schemas, when non-empty, restricts the export to events of the
	// given definition digests (rows and the registry events that
	// define them).
	Schemas []digest.Digest

	// Since, when positive, restricts the export to events created at
	// or after this Unix second. Incremental exports pass the time of
	// the previous bundle.
	Since int64
}

// Request describes one export.
type Request struct {
	Selection Selection

	// Recipients are age X25519 public keys the bundle is encrypted
	// to. At least one is required.
	Recipients []string

	// Caller is the identity requesting the export. Zero means the
	// space owner.
	Caller event.PubKey

	// Chain proves the caller's read authority. Roots export with an
	// empty chain; delegates present capabilities, and schemas the
	// chain cannot read are filtered out of the bundle.
	Chain []*capability.Token
}

// Export collects the selected events and every blob they reference
// into an encrypted bundle. The whole-log export (empty schema
// selection) requires read on the wildcard subject; per-schema
// exports are filtered to the schemas the caller can read, and fail
// only when nothing in the selection is readable.
func Export(ctx context.Context, sp *space.Space, req Request) ([]byte, error) {
	if len(req.Recipients) == 0 {
		return nil, fmt.Errorf("export: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(req.Recipients))
	for _, key := range req.Recipients {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("export: recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	caller := req.Caller
	if caller.IsZero() {
		caller = sp.Owner()
	}

	selection := space.EventSelection{Since: req.Selection.Since}
	if len(req.Selection.Schemas) == 0 {
		decision := sp.Authorize(capability.Request{
			Subject: capability.SubjectWildcard,
			Command: capability.CommandEventRead,
			Caller:  caller,
		}, req.Chain)
		if !decision.Allowed {
			return nil, fmt.Errorf("%w: %s", space.ErrUnauthorized, decision.Reason)
		}
	} else {
		allowed, err := readableSchemas(sp, caller, req.Selection.Schemas, req.Chain)
		if err != nil {
			return nil, err
		}
		selection.Schemas = allowed
	}

	events, err := sp.Events(ctx, selection)
	if err != nil {
		return nil, err
	}
	blobs, err := collectBlobs(ctx, sp.Content(), events)
	if err != nil {
		return nil, err
	}

	records := make([]record, 0, len(blobs)+len(events))
	for i := range blobs {
		records = append(records, record{Blob: &blobs[i]})
	}
	for _, ev := range events {
		data, err := ev.Marshal()
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		records = append(records, record{Event: data})
	}

	payload, err := codec.Marshal(bundle{
		Header: header{
			Version:   bundleVersion,
			ID:        ksid.NewID().String(),
			Space:     sp.Owner(),
			CreatedAt: time.Now().Unix(),
			Events:    len(events),
			Blobs:     len(blobs),
		},
		Records: records,
	})
	if err != nil {
		return nil, fmt.Errorf("export: encoding bundle: %w", err)
	}
	return seal(payload, recipients)
}

// readableSchemas filters the requested digests to those the caller
// may read. Every digest must name a registered schema; an entirely
// unreadable selection is an authorization error.
func readableSchemas(sp *space.Space, caller event.PubKey, schemas []digest.Digest, chain []*capability.Token) ([]digest.Digest, error) {
	var allowed []digest.Digest
	var denied capability.Decision
	for _, d := range schemas {
		if _, err := sp.SchemaByDigest(d); err != nil {
			return nil, err
		}
		decision := sp.Authorize(capability.Request{
			Subject: digest.Format(d),
			Command: capability.CommandEventRead,
			Caller:  caller,
			Params:  map[string]any{"schema": digest.Format(d)},
		}, chain)
		if !decision.Allowed {
			denied = decision
			continue
		}
		allowed = append(allowed, d)
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: %s", space.ErrUnauthorized, denied.Reason)
	}
	return allowed, nil
}

// collectBlobs gathers the content blobs the events reference, in
// encounter order, deduplicated. An event's direct content must be
// present; registry events additionally pull every definition in
// their version sequence, skipping ones the exporting space itself
// never held.
func collectBlobs(ctx context.Context, store content.Store, events []event.Event) ([]blobRecord, error) {
	var blobs []blobRecord
	seen := make(map[digest.Digest][]byte)

	add := func(d digest.Digest, required bool) ([]byte, error) {
		if data, ok := seen[d]; ok {
			return data, nil
		}
		data, err := store.Get(ctx, d)
		if errors.Is(err, content.ErrNotFound) && !required {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("blob %s: %w", digest.Short(d), err)
		}
		seen[d] = data
		blobs = append(blobs, blobRecord{Digest: d, Data: data})
		return data, nil
	}

	for _, ev := range events {
		data, err := add(ev.Content.Hash(), true)
		if err != nil {
			return nil, fmt.Errorf("export: event %s: %w", ev.ID.Short(), err)
		}
		if ev.Kind != event.KindMutateSchema {
			continue
		}
		seq, err := hashlink.ParseSequence(data)
		if err != nil {
			return nil, fmt.Errorf("export: event %s: %w", ev.ID.Short(), err)
		}
		for _, member := range seq.Hashes() {
			if _, err := add(member, false); err != nil {
				return nil, fmt.Errorf("export: event %s: %w", ev.ID.Short(), err)
			}
		}
	}
	return blobs, nil
}
