// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package space implements the event store behind a Weft space: an
// append-only log of signed events in SQLite, a schema registry, and a
// last-writer-wins projection of the log into rows.
//
// A space is a single database file. Events land in the events table,
// their content documents land in the content table (see lib/content),
// and delegation tokens land in the capabilities table. Appends for
// the same schema are serialized by a per-schema mutex; appends for
// different schemas and all queries proceed independently.
//
// The log is the source of truth. Rows are never updated in place:
// mutating a row appends a new event for the same row id, deleting a
// row appends a tombstone, and Query folds the log so that for each
// row id the event with the greatest (createdAt, id) wins. Replaying
// the same events in any order converges on the same rows.
package space
