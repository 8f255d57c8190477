// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the append-only event record at the heart of
// a space.
//
// An [Event] is a signed, content-addressed statement: "this key, at
// this time, set (or deleted) this row of this schema to the document
// at this address." Events are immutable once created. The log of
// events IS the database; every row the query layer serves is a fold
// over events.
//
// # Identity
//
// An event's [ID] is the SHA-256 digest of its canonical identity
// tuple, serialized as compact JSON:
//
//	[0, pubkey, createdAt, kind, tags, contentHash]
//
// The leading 0 is the identity format version. Note that only the
// content digest participates — an inline content value can be
// attached or stripped without changing the event's identity. The
// signature is ed25519 over the raw 32 ID bytes.
//
// # Kinds
//
// Kind numbers are wire constants in the 100000 range, paired as
// mutate/delete per record family: users, spaces, programs, schemas,
// and plain rows. A delete event is a tombstone — it carries the same
// tags as the mutation it retracts and wins or loses last-writer-wins
// resolution like any other event.
//
// # Tags
//
// Tags are small string annotations serialized as JSON arrays. Two
// names are load-bearing: "sch" carries the schema definition digest
// and "id" carries the row identifier. Both are denormalized into SQL
// columns at append time, but the authoritative copy rides in the
// event so identity and signatures survive export and re-import.
package event
