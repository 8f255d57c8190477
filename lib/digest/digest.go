// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest. All content addresses in a space
// (row values, schema definitions, hash sequences) are this size.
type Digest [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures that the same input bytes produce different
// digests in different contexts, preventing cross-domain collisions.
type domainKey [32]byte

// Domain separation keys. These are fixed constants — changing them
// invalidates every digest previously computed in that domain. The
// byte values are the ASCII encoding of the domain name, zero-padded
// to 32 bytes, so the keys are inspectable in hex dumps without
// sacrificing any cryptographic property.
var (
	contentDomainKey = domainKey{
		'w', 'e', 'f', 't', '.', 'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	exportDomainKey = domainKey{
		'w', 'e', 'f', 't', '.', 'e', 'x', 'p', 'o', 'r', 't', 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// SumContent computes the content-domain digest of the given bytes.
// This is the digest a hash link carries and the address under which
// the content store files the bytes. Row documents, schema
// definitions, and version sequences all live in this domain.
func SumContent(data []byte) Digest {
	return keyedSum(contentDomainKey, data)
}

// SumExport computes the export-domain digest of an export bundle's
// plaintext. Kept in a separate domain so a bundle whose payload
// happens to equal some stored value never collides with it. Used to
// identify bundles in logs and import reports.
func SumExport(data []byte) Digest {
	return keyedSum(exportDomainKey, data)
}

// IsZero reports whether the digest is the zero value. The zero digest
// never addresses content; it marks an unset field.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// String returns the hex form. Implements fmt.Stringer so digests
// format naturally in logs and errors.
func (d Digest) String() string {
	return Format(d)
}

// MarshalText implements encoding.TextMarshaler. Digests serialize as
// 64-character lowercase hex strings in JSON, CBOR, and YAML.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(Format(d)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Format returns the hex-encoded string representation of a digest.
// This is the canonical format used on the wire, in SQL columns, in
// logs, and in CLI output.
func Format(d Digest) string {
	return hex.EncodeToString(d[:])
}

// Parse parses a 64-character hex string into a Digest.
func Parse(hexString string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != 32 {
		return d, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(d[:], decoded)
	return d, nil
}

// Short returns the first 12 hex characters of a digest, for log
// lines and CLI listings where the full form is noise.
func Short(d Digest) string {
	return hex.EncodeToString(d[:6])
}

// keyedSum computes the BLAKE3 keyed hash with the given domain key.
func keyedSum(key domainKey, data []byte) Digest {
	// NewKeyed requires exactly 32 bytes, which domainKey guarantees.
	// The error is only returned for wrong key length, so this cannot
	// fail with our fixed-size type.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("digest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}
