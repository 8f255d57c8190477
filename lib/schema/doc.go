// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema parses and enforces the definition documents that
// give rows their shape.
//
// A definition is a small JSON-Schema-like document with a title and
// one of two field layouts: a fixed-order tuple (prefixItems), where
// a value is a JSON array matched by position, or a flat object
// (properties), where a value is a JSON object matched by name. The
// canonical form of a document (sorted keys, no whitespace) is what
// gets content-addressed, so cosmetic edits never mint a new schema.
//
// Value validation compiles each definition to a CUE constraint and
// unifies candidate values against it. The registry and append paths
// depend only on the [Validator] interface; the CUE implementation is
// the default, not a contract.
//
// Three built-in definitions (weft.profile, weft.space, weft.program)
// are generated from Go structs and seeded into every new space. They
// are ordinary schemas in every respect except that events targeting
// them use dedicated kind pairs.
package schema
