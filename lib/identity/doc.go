// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity manages the ed25519 signing identity of a space.
//
// An identity is a 32-byte ed25519 seed. At rest the seed lives in a
// keyfile: an age stream encrypted to an scrypt recipient derived
// from an operator passphrase. In memory the seed lives in a
// [secret.Buffer] (mmap-backed, locked against swap, excluded from
// core dumps); signing keys are derived from it per call and zeroed
// after use.
//
// [Identity] implements [event.Signer], so a loaded keyfile plugs
// directly into a space configuration.
package identity
