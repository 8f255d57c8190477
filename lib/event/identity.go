// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// ID is an event identifier: the SHA-256 digest of the event's
// canonical identity tuple. It is hex-encoded wherever it appears in
// JSON or SQL.
type ID [32]byte

// ParseID decodes a 64-character hex event identifier.
func ParseID(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("event: parse id: %w", err)
	}
	if len(raw) != len(id) {
		return ID{}, fmt.Errorf("event: id is %d bytes, want %d", len(raw), len(id))
	}
	copy(id[:], raw)
	return id, nil
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns a truncated prefix for log lines.
func (id ID) Short() string {
	return hex.EncodeToString(id[:6])
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id == ID{}
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// PubKey is an ed25519 public key, hex-encoded on the wire. It names
// the author of an event and the issuer or audience of a capability.
type PubKey [ed25519.PublicKeySize]byte

// ParsePubKey decodes a 64-character hex public key.
func ParsePubKey(s string) (PubKey, error) {
	var pk PubKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return PubKey{}, fmt.Errorf("event: parse pubkey: %w", err)
	}
	if len(raw) != len(pk) {
		return PubKey{}, fmt.Errorf("event: pubkey is %d bytes, want %d", len(raw), len(pk))
	}
	copy(pk[:], raw)
	return pk, nil
}

// PubKeyFrom copies a standard library ed25519 public key.
func PubKeyFrom(key ed25519.PublicKey) (PubKey, error) {
	var pk PubKey
	if len(key) != len(pk) {
		return PubKey{}, fmt.Errorf("event: pubkey is %d bytes, want %d", len(key), len(pk))
	}
	copy(pk[:], key)
	return pk, nil
}

func (pk PubKey) String() string {
	return hex.EncodeToString(pk[:])
}

// Short returns a truncated prefix for log lines.
func (pk PubKey) Short() string {
	return hex.EncodeToString(pk[:6])
}

// IsZero reports whether the key is unset.
func (pk PubKey) IsZero() bool {
	return pk == PubKey{}
}

// Verify reports whether sig is a valid signature by pk over the raw
// bytes of id.
func (pk PubKey) Verify(id ID, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), id[:], sig[:])
}

func (pk PubKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PubKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// Signature is an ed25519 signature over an event ID, hex-encoded on
// the wire.
type Signature [ed25519.SignatureSize]byte

// ParseSignature decodes a 128-character hex signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, fmt.Errorf("event: parse signature: %w", err)
	}
	if len(raw) != len(sig) {
		return Signature{}, fmt.Errorf("event: signature is %d bytes, want %d", len(raw), len(sig))
	}
	copy(sig[:], raw)
	return sig, nil
}

func (sig Signature) String() string {
	return hex.EncodeToString(sig[:])
}

// IsZero reports whether the signature is unset.
func (sig Signature) IsZero() bool {
	return sig == Signature{}
}

func (sig Signature) MarshalText() ([]byte, error) {
	return []byte(sig.String()), nil
}

func (sig *Signature) UnmarshalText(text []byte) error {
	parsed, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*sig = parsed
	return nil
}
