// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package hashlink provides content addresses that optionally carry
// their addressed value inline.
//
// A [Link] is the unit of content addressing in a space. Every event's
// content field is a Link; schema definitions and version sequences
// are addressed the same way. On the wire a Link has two JSON forms:
//
//	"7f3a…"                       // detached: just the digest
//	{"hash": "7f3a…", "value": …} // inline: digest plus the bytes
//
// Only the digest participates in event identity. The inline form is a
// transport optimization — a client can ship a row document in the
// same request as the event that references it, and a query response
// can return documents without a second round trip. Before anything is
// persisted the value is verified against the digest and stripped.
//
// A [Sequence] is an append-only list of digests recording a schema's
// version lineage. Its canonical serialization is a JSON array of
// detached digest strings; the last entry is the principal (current)
// version. Append returns a new Sequence, leaving the receiver
// untouched, so registry code can speculatively extend a lineage and
// discard it on validation failure.
package hashlink
