// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package hashlink

import (
	"encoding/json"
	"fmt"

	"github.com/weft-foundation/weft/lib/digest"
)

// Sequence is an append-only list of content digests. A schema's
// version lineage is a Sequence: each entry addresses one definition
// document, and the last entry (the principal) is the current version.
//
// Sequence values are immutable. Append returns a new Sequence sharing
// no state with the receiver.
type Sequence struct {
	hashes []digest.Digest
}

// SequenceOf returns a Sequence holding the given digests in order.
func SequenceOf(hashes ...digest.Digest) Sequence {
	owned := make([]digest.Digest, len(hashes))
	copy(owned, hashes)
	return Sequence{hashes: owned}
}

// ParseSequence parses a canonical sequence document. Entries may use
// either link wire form; inline values are discarded since a sequence
// records lineage, not content.
func ParseSequence(data []byte) (Sequence, error) {
	var links []Link
	if err := json.Unmarshal(data, &links); err != nil {
		return Sequence{}, fmt.Errorf("hashlink: parsing sequence: %w", err)
	}
	hashes := make([]digest.Digest, len(links))
	for i, link := range links {
		hashes[i] = link.Hash()
	}
	return Sequence{hashes: hashes}, nil
}

// Append returns a new Sequence with d appended. The receiver is
// unchanged.
func (s Sequence) Append(d digest.Digest) Sequence {
	extended := make([]digest.Digest, len(s.hashes)+1)
	copy(extended, s.hashes)
	extended[len(s.hashes)] = d
	return Sequence{hashes: extended}
}

// Principal returns the last digest in the sequence and true, or the
// zero digest and false when the sequence is empty.
func (s Sequence) Principal() (digest.Digest, bool) {
	if len(s.hashes) == 0 {
		return digest.Digest{}, false
	}
	return s.hashes[len(s.hashes)-1], true
}

// Len returns the number of entries.
func (s Sequence) Len() int { return len(s.hashes) }

// At returns the i-th digest. Panics if i is out of range, matching
// slice indexing.
func (s Sequence) At(i int) digest.Digest { return s.hashes[i] }

// Contains reports whether d appears anywhere in the sequence.
func (s Sequence) Contains(d digest.Digest) bool {
	for _, h := range s.hashes {
		if h == d {
			return true
		}
	}
	return false
}

// Hashes returns a copy of the entries in order.
func (s Sequence) Hashes() []digest.Digest {
	out := make([]digest.Digest, len(s.hashes))
	copy(out, s.hashes)
	return out
}

// Canonical returns the canonical serialization: a JSON array of
// detached digest strings. This is the document persisted in the
// content store and the preimage of Digest.
func (s Sequence) Canonical() ([]byte, error) {
	strings := make([]string, len(s.hashes))
	for i, h := range s.hashes {
		strings[i] = digest.Format(h)
	}
	data, err := json.Marshal(strings)
	if err != nil {
		return nil, fmt.Errorf("hashlink: serializing sequence: %w", err)
	}
	return data, nil
}

// Digest returns the content digest of the canonical serialization.
// This is the address a schema event's content link carries: resolving
// it yields the full lineage at the time the event was appended.
func (s Sequence) Digest() (digest.Digest, error) {
	canonical, err := s.Canonical()
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.SumContent(canonical), nil
}

// MarshalJSON emits the canonical form.
func (s Sequence) MarshalJSON() ([]byte, error) {
	return s.Canonical()
}

// UnmarshalJSON accepts the canonical form plus inline-link entries.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSequence(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
