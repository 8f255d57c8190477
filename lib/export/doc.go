// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package export packs space events and their content blobs into
// encrypted bundles and unpacks them into other spaces. Bundles are
// the offline sharing unit: a space owner (or a delegate holding read
// capabilities) exports a selection, hands the bundle to someone, and
// the recipient imports it into their own space.
//
// A bundle is a CBOR record stream, zstd-compressed, age-encrypted to
// the recipients' X25519 public keys. A keyed BLAKE3 digest over the
// record stream binds the bundle: truncation or bit rot surfaces as a
// manifest mismatch before any record is processed. The digest guards
// transport integrity only — authorship is carried by the event
// signatures themselves, which Import re-verifies one by one before
// touching the destination log. A bundle whose events fail
// verification imports nothing.
//
// Import is idempotent. Event ids are content-derived and blob
// storage is content-addressed, so re-importing a bundle (or
// importing overlapping bundles) converges to the same log.
//
// Selection scopes an export to schema digests and a starting time.
// An empty selection exports the whole log, which requires read on
// every schema (the wildcard subject); per-schema exports are
// filtered to the schemas the presented chain can read.
package export
