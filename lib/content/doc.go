// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package content provides the content-addressed blob store backing a
// space.
//
// Every document a space persists — row values, schema definitions,
// version sequences — is filed under its content digest. The [Store]
// interface is deliberately small (Put, Get, Has) and is injected into
// the space layer, so the event log never assumes a particular
// backend.
//
// Two backends are provided:
//
//   - [Memory]: a map-backed store for tests and ephemeral spaces.
//   - [SQLite]: the production store, sharing the space's connection
//     pool. Blobs are transparently compressed (probe-selected zstd or
//     LZ4) and optionally encrypted at rest with XChaCha20-Poly1305
//     under per-blob keys derived from a space content key.
//
// The store is self-certifying: Get recomputes the digest of the
// returned bytes and fails with [ErrCorrupt] on mismatch, so a
// truncated or tampered database page cannot silently serve wrong
// content. Addresses are always digests of the plaintext, which keeps
// deduplication intact when encryption is enabled.
package content
