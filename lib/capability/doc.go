// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability implements delegated, attenuation-only
// authorization for space operations.
//
// A capability is a signed statement: "issuer permits audience to run
// command on subject, under these policy predicates, within this time
// window." Capabilities delegate: the audience of one link may issue
// a narrower capability to someone else, forming a chain. A chain
// authorizes a request when an unbroken line runs from a trusted root
// issuer to the caller, every link only ever narrows what its parent
// granted, and every link's policy holds for the request parameters.
//
// On the wire a capability is an EdDSA JWT whose issuer claim is the
// issuer's own public key, making tokens self-certifying: [Parse]
// verifies the signature against the embedded key, so holding a
// [Token] value means the signature checked out. Whether the issuer
// is trusted is a separate question answered at evaluation time
// against the root set.
//
// Evaluation ([Authorize]) is pure and in-memory: the chain is a
// slice walked front (root) to back (caller), no recursion, no IO.
// Anything unexpected denies — unknown policy operators, missing
// parameters, a zero evaluation time against an expiring link.
package capability
