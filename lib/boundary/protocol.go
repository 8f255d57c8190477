// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package boundary

import (
	"encoding/json"
	"errors"

	"github.com/weft-foundation/weft/lib/capability"
	"github.com/weft-foundation/weft/lib/content"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/schema"
	"github.com/weft-foundation/weft/lib/space"
)

// Error kinds on the wire. Clients dispatch on these, never on
// message text.
const (
	KindSchemaNotFound   = "schema_not_found"
	KindValidationFailed = "validation_failed"
	KindUnauthorized     = "unauthorized"
	KindSignatureError   = "signature_error"
	KindNotFound         = "not_found"
	KindMalformedInput   = "malformed_input"
	KindInternal         = "internal"
)

// Error is the failure payload of a response.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message + " (" + e.Kind + ")"
}

// Response is the envelope every request is answered with.
type Response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// kindOf maps an error to its wire kind. Unrecognized errors are
// internal: their detail belongs in the service log, not on the wire.
func kindOf(err error) string {
	switch {
	case errors.Is(err, space.ErrSchemaNotFound):
		return KindSchemaNotFound
	case errors.Is(err, schema.ErrValidation):
		return KindValidationFailed
	case errors.Is(err, space.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, event.ErrSignature), errors.Is(err, event.ErrIdentity):
		return KindSignatureError
	case errors.Is(err, content.ErrNotFound):
		return KindNotFound
	case errors.Is(err, space.ErrMalformedInput), errors.Is(err, capability.ErrMalformed):
		return KindMalformedInput
	default:
		return KindInternal
	}
}

// SchemaView is the wire form of a registry record.
type SchemaView struct {
	Title     string          `json:"title"`
	Digest    digest.Digest   `json:"digest"`
	RowID     string          `json:"row_id"`
	Versions  []digest.Digest `json:"versions"`
	CreatedAt int64           `json:"created_at"`
	Author    event.PubKey    `json:"author"`
}

func schemaView(rec *space.Schema) SchemaView {
	return SchemaView{
		Title:     rec.Title,
		Digest:    rec.Digest(),
		RowID:     rec.RowID,
		Versions:  rec.Sequence.Hashes(),
		CreatedAt: rec.CreatedAt,
		Author:    rec.Author,
	}
}

// RowView is the wire form of a projected row.
type RowView struct {
	RowID     string          `json:"row_id"`
	Schema    digest.Digest   `json:"schema"`
	Value     json.RawMessage `json:"value"`
	CreatedAt int64           `json:"created_at"`
	Author    event.PubKey    `json:"author"`
}

func rowView(row space.Row) RowView {
	return RowView{
		RowID:     row.RowID,
		Schema:    row.Schema,
		Value:     json.RawMessage(row.Value()),
		CreatedAt: row.CreatedAt,
		Author:    row.Author,
	}
}

// QueryResult wraps the rows of an event_query response.
type QueryResult struct {
	Rows []RowView `json:"rows"`
}

// Status is the status action's response.
type Status struct {
	Owner        event.PubKey `json:"owner"`
	Events       int64        `json:"events"`
	Schemas      int          `json:"schemas"`
	Capabilities int64        `json:"capabilities"`
	Blobs        int64        `json:"blobs"`
	BlobBytes    int64        `json:"blob_bytes"`
}
