// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"context"
	"fmt"

	"filippo.io/age"

	"github.com/weft-foundation/weft/lib/codec"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/secret"
	"github.com/weft-foundation/weft/lib/space"
)

// Report summarizes one import.
type Report struct {
	// Bundle is the bundle's id from its header.
	Bundle string `json:"bundle"`

	// Space is the exporting space's owner identity.
	Space event.PubKey `json:"space"`

	// CreatedAt is the bundle's creation time (Unix seconds).
	CreatedAt int64 `json:"createdAt"`

	// Ingested counts events appended to the log.
	Ingested int `json:"ingested"`

	// Known counts events that were already present and skipped.
	Known int `json:"known"`

	// Blobs counts content blobs stored (blobs already present are
	// not counted).
	Blobs int `json:"blobs"`
}

// Import unpacks a bundle into a space. The bundle's manifest digest
// is checked first, then every event's id and signature; a single
// failure aborts before anything touches the log, so a tampered
// bundle imports nothing. Verified blobs are stored before events are
// ingested, and events already in the log are skipped, making
// re-imports idempotent. The registry is refreshed afterwards so
// imported schemas resolve immediately.
//
// The identity buffer holds the recipient's age X25519 private key in
// its AGE-SECRET-KEY-1 text form. It is borrowed, not closed.
func Import(ctx context.Context, sp *space.Space, data []byte, identity *secret.Buffer) (*Report, error) {
	if identity == nil {
		return nil, fmt.Errorf("export: identity is required")
	}
	parsed, err := age.ParseX25519Identity(identity.String())
	if err != nil {
		return nil, fmt.Errorf("export: parsing identity: %w", err)
	}

	payload, err := unseal(data, parsed)
	if err != nil {
		return nil, err
	}
	var b bundle
	if err := codec.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("export: decoding bundle: %w", err)
	}
	if b.Header.Version != bundleVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, b.Header.Version)
	}

	events, blobs, err := splitRecords(b)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Bundle:    b.Header.ID,
		Space:     b.Header.Space,
		CreatedAt: b.Header.CreatedAt,
	}

	store := sp.Content()
	for _, blob := range blobs {
		has, err := store.Has(ctx, blob.Digest)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		if has {
			continue
		}
		if _, err := store.Put(ctx, blob.Data); err != nil {
			return nil, fmt.Errorf("export: storing blob %s: %w", digest.Short(blob.Digest), err)
		}
		report.Blobs++
	}

	for _, ev := range events {
		known, err := sp.HasEvent(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		if known {
			report.Known++
			continue
		}
		if err := sp.Ingest(ctx, ev); err != nil {
			return nil, err
		}
		report.Ingested++
	}

	if err := sp.RefreshRegistry(ctx); err != nil {
		return nil, err
	}
	return report, nil
}

// splitRecords separates and verifies a bundle's records. Every event
// must re-derive its id and verify its signature, and every blob must
// hash to its claimed digest, before the caller stores anything.
func splitRecords(b bundle) ([]event.Event, []blobRecord, error) {
	var events []event.Event
	var blobs []blobRecord
	for i, rec := range b.Records {
		switch {
		case rec.Event != nil && rec.Blob == nil:
			ev, err := event.Unmarshal(rec.Event)
			if err != nil {
				return nil, nil, fmt.Errorf("export: record %d: %w", i, err)
			}
			if err := ev.Verify(); err != nil {
				return nil, nil, fmt.Errorf("export: event %s: %w", ev.ID.Short(), err)
			}
			events = append(events, ev)
		case rec.Blob != nil && rec.Event == nil:
			if digest.SumContent(rec.Blob.Data) != rec.Blob.Digest {
				return nil, nil, fmt.Errorf("%w: %s", ErrBlob, digest.Short(rec.Blob.Digest))
			}
			blobs = append(blobs, *rec.Blob)
		default:
			return nil, nil, fmt.Errorf("%w: record %d carries neither an event nor a blob", ErrManifest, i)
		}
	}
	if len(events) != b.Header.Events || len(blobs) != b.Header.Blobs {
		return nil, nil, fmt.Errorf("%w: header counts %d/%d, stream carries %d/%d",
			ErrManifest, b.Header.Events, b.Header.Blobs, len(events), len(blobs))
	}
	return events, blobs, nil
}
