// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"fmt"

	"github.com/weft-foundation/weft/lib/digest"
)

// Tag names with defined meanings. Other names are carried verbatim.
const (
	// TagSchema ("sch") holds the hex digest of the schema definition
	// the event's content conforms to.
	TagSchema = "sch"

	// TagRowID ("id") holds the logical row identifier the event
	// mutates. Successive mutations of one row share this value.
	TagRowID = "id"
)

// Tag is one event annotation. On the wire it is a JSON array of two
// or three strings: the name, the value, and an optional extra
// element. The array form participates in the event identity
// preimage, so tags must round-trip byte-for-byte.
type Tag struct {
	Name  string
	Value string
	Extra string
	// hasExtra distinguishes an absent third element from an empty
	// one, so parsed tags re-serialize to the exact identity preimage
	// they were hashed under.
	hasExtra bool
}

// NewTag returns a two-element tag.
func NewTag(name, value string) Tag {
	return Tag{Name: name, Value: value}
}

// NewTagExtra returns a three-element tag.
func NewTagExtra(name, value, extra string) Tag {
	return Tag{Name: name, Value: value, Extra: extra, hasExtra: true}
}

// SchemaTag returns the "sch" tag for a schema definition digest.
func SchemaTag(d digest.Digest) Tag {
	return NewTag(TagSchema, d.String())
}

// RowIDTag returns the "id" tag for a row identifier.
func RowIDTag(id string) Tag {
	return NewTag(TagRowID, id)
}

// HasExtra reports whether the tag carries a third element.
func (t Tag) HasExtra() bool {
	return t.hasExtra
}

func (t Tag) MarshalJSON() ([]byte, error) {
	if t.hasExtra {
		return json.Marshal([3]string{t.Name, t.Value, t.Extra})
	}
	return json.Marshal([2]string{t.Name, t.Value})
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("event: tag is not an array of strings: %w", err)
	}
	switch len(fields) {
	case 2:
		*t = Tag{Name: fields[0], Value: fields[1]}
	case 3:
		*t = Tag{Name: fields[0], Value: fields[1], Extra: fields[2], hasExtra: true}
	default:
		return fmt.Errorf("event: tag has %d elements, want 2 or 3", len(fields))
	}
	return nil
}
