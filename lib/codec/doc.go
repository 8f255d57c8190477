// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Weft's standard CBOR encoding configuration.
//
// Weft uses two serialization formats with a clear boundary:
//
//   - JSON for the durable event format and external interfaces: event
//     identity preimages, row content documents, schema definitions,
//     the boundary socket protocol, and CLI output. JSON is the format
//     events are hashed and signed over, so it is load-bearing for
//     identity and can never change shape.
//   - CBOR for transport envelopes: export bundle records and bundle
//     manifests.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Weft package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, which keeps export bundles reproducible.
//
// For buffer-oriented operations (columns, bundles):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (bundle writers):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR. It will
//     never be marshaled to JSON or cross the boundary socket.
//     Examples: export bundle records and manifests.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor`
//     tags are absent, so a single `json` tag controls field naming
//     and omitempty for both formats. Examples: events and hash
//     links (hashed as JSON, embedded in CBOR bundles), boundary
//     protocol types.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract — doubling up is noise that obscures
// whether a type participates in JSON serialization.
package codec
