// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/hashlink"
)

// identityVersion is the leading element of the identity preimage
// tuple. Bump only with a migration story for every existing event.
const identityVersion = 0

var (
	// ErrIdentity reports an event whose ID does not match its
	// contents.
	ErrIdentity = errors.New("event: id does not match contents")

	// ErrSignature reports an event whose signature does not verify
	// against its pubkey and ID.
	ErrSignature = errors.New("event: signature verification failed")

	// ErrTagMissing reports a lookup for a tag the event lacks.
	ErrTagMissing = errors.New("event: tag missing")
)

// Signer produces event signatures. The space layer never touches
// private key material directly; it works through this interface.
type Signer interface {
	// PubKey returns the public half of the signing key.
	PubKey() PubKey

	// Sign signs the raw 32 bytes of an event ID.
	Sign(id ID) (Signature, error)
}

// Event is one signed, immutable record in a space's log.
//
// The JSON field set is the durable format: it is what export bundles
// carry and what identity and signature verification re-derive. Do
// not rename fields.
type Event struct {
	ID        ID            `json:"id"`
	PubKey    PubKey        `json:"pubkey"`
	CreatedAt int64         `json:"createdAt"`
	Kind      Kind          `json:"kind"`
	Tags      []Tag         `json:"tags"`
	Content   hashlink.Link `json:"content"`
	Sig       Signature     `json:"sig"`
}

// ComputeID derives the event identifier from the identity-bearing
// fields. Only the content digest participates, so attaching or
// stripping an inline content value never changes the ID.
func ComputeID(pubkey PubKey, createdAt int64, kind Kind, tags []Tag, contentHash digest.Digest) (ID, error) {
	if tags == nil {
		tags = []Tag{}
	}
	preimage, err := json.Marshal([]any{identityVersion, pubkey, createdAt, kind, tags, contentHash})
	if err != nil {
		return ID{}, fmt.Errorf("event: compute id: %w", err)
	}
	return sha256.Sum256(preimage), nil
}

// New creates and signs an event. The content link's digest becomes
// part of the identity; whether the link is inline or detached does
// not matter.
func New(signer Signer, createdAt int64, kind Kind, tags []Tag, content hashlink.Link) (Event, error) {
	if !kind.Valid() {
		return Event{}, fmt.Errorf("event: unknown kind %d", uint32(kind))
	}
	if content.IsZero() {
		return Event{}, errors.New("event: content link is required")
	}
	pubkey := signer.PubKey()
	id, err := ComputeID(pubkey, createdAt, kind, tags, content.Hash())
	if err != nil {
		return Event{}, err
	}
	sig, err := signer.Sign(id)
	if err != nil {
		return Event{}, fmt.Errorf("event: sign: %w", err)
	}
	return Event{
		ID:        id,
		PubKey:    pubkey,
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
		Sig:       sig,
	}, nil
}

// Verify recomputes the event ID and checks the signature. It is the
// gate every externally sourced event must pass before entering a
// space.
func (e Event) Verify() error {
	id, err := ComputeID(e.PubKey, e.CreatedAt, e.Kind, e.Tags, e.Content.Hash())
	if err != nil {
		return err
	}
	if id != e.ID {
		return fmt.Errorf("%w: computed %s, event claims %s", ErrIdentity, id.Short(), e.ID.Short())
	}
	if !e.PubKey.Verify(e.ID, e.Sig) {
		return fmt.Errorf("%w: event %s", ErrSignature, e.ID.Short())
	}
	return nil
}

// Tag returns the value of the first tag with the given name.
func (e Event) Tag(name string) (string, bool) {
	for _, t := range e.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// SchemaDigest returns the schema definition digest from the event's
// "sch" tag.
func (e Event) SchemaDigest() (digest.Digest, error) {
	value, ok := e.Tag(TagSchema)
	if !ok {
		return digest.Digest{}, fmt.Errorf("%w: %q on event %s", ErrTagMissing, TagSchema, e.ID.Short())
	}
	d, err := digest.Parse(value)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("event: schema tag on event %s: %w", e.ID.Short(), err)
	}
	return d, nil
}

// RowID returns the row identifier from the event's "id" tag.
func (e Event) RowID() (string, error) {
	value, ok := e.Tag(TagRowID)
	if !ok {
		return "", fmt.Errorf("%w: %q on event %s", ErrTagMissing, TagRowID, e.ID.Short())
	}
	return value, nil
}

// Supersedes reports whether e wins last-writer-wins resolution
// against other. Later createdAt wins; equal timestamps break the tie
// by lexicographic ID so every replica picks the same winner.
func (e Event) Supersedes(other Event) bool {
	if e.CreatedAt != other.CreatedAt {
		return e.CreatedAt > other.CreatedAt
	}
	return e.ID.String() > other.ID.String()
}

// Marshal serializes the event to its durable JSON form.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s: %w", e.ID.Short(), err)
	}
	return data, nil
}

// Unmarshal parses an event from its durable JSON form. It does not
// verify; callers that accept events across a trust boundary must
// call [Event.Verify].
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("event: unmarshal: %w", err)
	}
	return e, nil
}
