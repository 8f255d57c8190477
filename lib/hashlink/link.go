// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package hashlink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weft-foundation/weft/lib/digest"
)

// ErrMismatch is returned when a link's inline value does not hash to
// the digest the link claims.
var ErrMismatch = errors.New("hashlink: inline value does not match digest")

// Getter loads content by digest. Implemented by the content store;
// declared here so links can resolve without depending on a concrete
// storage backend.
type Getter interface {
	Get(ctx context.Context, d digest.Digest) ([]byte, error)
}

// Link is a content address, optionally carrying the addressed JSON
// document inline. The zero Link addresses nothing.
//
// Two Links are the same address when their digests are equal; the
// inline value never participates in identity or comparison.
type Link struct {
	hash  digest.Digest
	value []byte // compact JSON, nil when detached
}

// New returns a detached Link addressing the given digest.
func New(d digest.Digest) Link {
	return Link{hash: d}
}

// FromValue returns an inline Link carrying the given JSON document.
// The document is compacted before hashing so that formatting
// variations of the same document produce the same address.
func FromValue(value []byte) (Link, error) {
	compact, err := compactJSON(value)
	if err != nil {
		return Link{}, fmt.Errorf("hashlink: %w", err)
	}
	return Link{
		hash:  digest.SumContent(compact),
		value: compact,
	}, nil
}

// Parse parses a bare hex digest string into a detached Link.
func Parse(s string) (Link, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return Link{}, fmt.Errorf("hashlink: %w", err)
	}
	return Link{hash: d}, nil
}

// Hash returns the digest this link addresses.
func (l Link) Hash() digest.Digest { return l.hash }

// Value returns the inline document and true if the link carries one.
// The returned slice must not be modified.
func (l Link) Value() ([]byte, bool) {
	if l.value == nil {
		return nil, false
	}
	return l.value, true
}

// IsZero reports whether the link is the zero value.
func (l Link) IsZero() bool {
	return l.hash.IsZero() && l.value == nil
}

// Detached returns a copy of the link with the inline value stripped.
// This is the form persisted in event columns and sequences.
func (l Link) Detached() Link {
	return Link{hash: l.hash}
}

// Verify checks the inline value against the digest. Detached links
// verify trivially. Returns ErrMismatch when the value hashes to a
// different digest than the link claims.
func (l Link) Verify() error {
	if l.value == nil {
		return nil
	}
	if digest.SumContent(l.value) != l.hash {
		return ErrMismatch
	}
	return nil
}

// Resolve returns the document this link addresses. An inline value is
// verified and returned directly; a detached link is fetched from the
// getter. The getter is consulted only when necessary, so resolving a
// batch of inline links costs no storage reads.
func (l Link) Resolve(ctx context.Context, getter Getter) ([]byte, error) {
	if l.value != nil {
		if err := l.Verify(); err != nil {
			return nil, err
		}
		return l.value, nil
	}
	data, err := getter.Get(ctx, l.hash)
	if err != nil {
		return nil, fmt.Errorf("hashlink: resolving %s: %w", digest.Short(l.hash), err)
	}
	return data, nil
}

// String returns the hex digest. The inline value, if any, is not
// included; links format as addresses in logs.
func (l Link) String() string {
	return digest.Format(l.hash)
}

// wireLink is the object form of a link on the wire.
type wireLink struct {
	Hash  digest.Digest   `json:"hash"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON emits the bare digest string for detached links and the
// {hash, value} object form for inline links.
func (l Link) MarshalJSON() ([]byte, error) {
	if l.value == nil {
		return json.Marshal(digest.Format(l.hash))
	}
	return json.Marshal(wireLink{Hash: l.hash, Value: l.value})
}

// UnmarshalJSON accepts both wire forms. Inline values are compacted
// but NOT verified against the digest — verification is a policy
// decision that belongs to the caller (the store verifies before
// persisting; a read path may trust its own storage).
func (l *Link) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("hashlink: empty link")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("hashlink: %w", err)
		}
		parsed, err := Parse(s)
		if err != nil {
			return err
		}
		*l = parsed
		return nil

	case '{':
		var wire wireLink
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return fmt.Errorf("hashlink: %w", err)
		}
		if wire.Hash.IsZero() {
			return errors.New("hashlink: link object missing hash")
		}
		l.hash = wire.Hash
		l.value = nil
		if wire.Value != nil {
			compact, err := compactJSON(wire.Value)
			if err != nil {
				return fmt.Errorf("hashlink: %w", err)
			}
			l.value = compact
		}
		return nil

	default:
		return fmt.Errorf("hashlink: link must be a digest string or {hash, value} object, got %q", previewJSON(trimmed))
	}
}

// compactJSON validates and compacts a JSON document. JSON null is
// rejected: a link cannot address the absence of a document.
func compactJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("document is JSON null")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("compacting document: %w", err)
	}
	return buf.Bytes(), nil
}

// previewJSON truncates raw JSON for error messages.
func previewJSON(data []byte) string {
	const limit = 32
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "…"
}
