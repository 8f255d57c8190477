// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maruel/ksid"

	"github.com/weft-foundation/weft/lib/capability"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/schema"
	"github.com/weft-foundation/weft/lib/space"
)

// Limits bound what the boundary accepts. Zero fields mean no bound.
type Limits struct {
	// MaxValueBytes caps the byte size of one row value.
	MaxValueBytes int

	// MaxQueryLimit caps the page size of query and list actions. A
	// request asking for more, or for everything, is clamped to this
	// many entries per page; offsets still reach the rest.
	MaxQueryLimit int
}

// Handlers binds a space's operations to boundary actions.
type Handlers struct {
	space  *space.Space
	logger *slog.Logger
	limits Limits
}

// NewHandlers creates the action handlers for a space. A nil limits
// leaves every bound open.
func NewHandlers(sp *space.Space, logger *slog.Logger, limits *Limits) *Handlers {
	h := &Handlers{space: sp, logger: logger}
	if limits != nil {
		h.limits = *limits
	}
	return h
}

// Register wires every action onto the server.
func (h *Handlers) Register(server *Server) {
	server.Handle("schema_load_or_create", h.schemaLoadOrCreate)
	server.Handle("event_create", h.eventCreate)
	server.Handle("event_mutate", h.eventMutate)
	server.Handle("event_delete", h.eventDelete)
	server.Handle("event_query", h.eventQuery)
	server.Handle("schema_get", h.schemaGet)
	server.Handle("schema_list", h.schemaList)
	server.Handle("status", h.status)
}

// parseChain verifies and decodes the request's capability JWTs. A
// link that does not parse means the chain proves nothing.
func parseChain(tokens []string) ([]*capability.Token, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	chain := make([]*capability.Token, 0, len(tokens))
	for i, raw := range tokens {
		token, err := capability.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: chain link %d: %v", space.ErrUnauthorized, i, err)
		}
		chain = append(chain, token)
	}
	return chain, nil
}

// caller is the identity a request acts as: the chain's terminal
// audience, or the space owner when no chain is presented (holding
// the socket is holding the space).
func (h *Handlers) caller(chain []*capability.Token) event.PubKey {
	if len(chain) == 0 {
		return h.space.Owner()
	}
	return chain[len(chain)-1].Capability().Audience
}

func (h *Handlers) authorize(subject, command string, params map[string]any, chain []*capability.Token) error {
	decision := h.space.Authorize(capability.Request{
		Subject: subject,
		Command: command,
		Caller:  h.caller(chain),
		Params:  params,
	}, chain)
	if !decision.Allowed {
		return fmt.Errorf("%w: %s", space.ErrUnauthorized, decision.Reason)
	}
	return nil
}

// clampLimit applies the configured page size cap. -1 asks for
// everything, which the cap turns into one maximal page.
func (h *Handlers) clampLimit(limit int) int {
	if h.limits.MaxQueryLimit <= 0 {
		return limit
	}
	if limit < 0 || limit > h.limits.MaxQueryLimit {
		return h.limits.MaxQueryLimit
	}
	return limit
}

func decodeParams(raw json.RawMessage, params any) error {
	if err := json.Unmarshal(raw, params); err != nil {
		return fmt.Errorf("%w: invalid parameters: %v", space.ErrMalformedInput, err)
	}
	return nil
}

func parseSchemaDigest(value string) (digest.Digest, error) {
	if value == "" {
		return digest.Digest{}, fmt.Errorf("%w: schema digest is required", space.ErrMalformedInput)
	}
	d, err := digest.Parse(value)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("%w: schema digest: %v", space.ErrMalformedInput, err)
	}
	return d, nil
}

func (h *Handlers) schemaLoadOrCreate(ctx context.Context, raw json.RawMessage) (any, error) {
	var params struct {
		Schema json.RawMessage `json:"schema"`
		Chain  []string        `json:"chain"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if len(params.Schema) == 0 {
		return nil, fmt.Errorf("%w: schema document is required", space.ErrMalformedInput)
	}
	chain, err := parseChain(params.Chain)
	if err != nil {
		return nil, err
	}
	def, err := schema.Parse(params.Schema)
	if err != nil {
		return nil, err
	}
	subject := digest.Format(def.Digest())
	if err := h.authorize(subject, capability.CommandSchemaWrite, map[string]any{"schema": subject}, chain); err != nil {
		return nil, err
	}
	rec, err := h.space.LoadOrCreateSchema(ctx, params.Schema)
	if err != nil {
		return nil, err
	}
	return schemaView(rec), nil
}

func (h *Handlers) eventCreate(ctx context.Context, raw json.RawMessage) (any, error) {
	var params struct {
		Schema string          `json:"schema"`
		Value  json.RawMessage `json:"value"`
		Chain  []string        `json:"chain"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	// The row id is minted here so write policies can see it.
	return h.appendRow(ctx, params.Schema, ksid.NewID().String(), params.Value, false, params.Chain)
}

func (h *Handlers) eventMutate(ctx context.Context, raw json.RawMessage) (any, error) {
	var params struct {
		Schema string          `json:"schema"`
		RowID  string          `json:"row_id"`
		Value  json.RawMessage `json:"value"`
		Chain  []string        `json:"chain"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.RowID == "" {
		return nil, fmt.Errorf("%w: row_id is required", space.ErrMalformedInput)
	}
	return h.appendRow(ctx, params.Schema, params.RowID, params.Value, false, params.Chain)
}

func (h *Handlers) eventDelete(ctx context.Context, raw json.RawMessage) (any, error) {
	var params struct {
		Schema string   `json:"schema"`
		RowID  string   `json:"row_id"`
		Chain  []string `json:"chain"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	return h.appendRow(ctx, params.Schema, params.RowID, nil, true, params.Chain)
}

// appendRow authorizes and appends one write. The event is signed by
// the space identity regardless of who asked; the chain decides
// whether the ask is honored.
func (h *Handlers) appendRow(ctx context.Context, schemaDigest, rowID string, value json.RawMessage, delete bool, rawChain []string) (any, error) {
	d, err := parseSchemaDigest(schemaDigest)
	if err != nil {
		return nil, err
	}
	if h.limits.MaxValueBytes > 0 && len(value) > h.limits.MaxValueBytes {
		return nil, fmt.Errorf("%w: value is %d bytes, limit %d",
			space.ErrMalformedInput, len(value), h.limits.MaxValueBytes)
	}
	chain, err := parseChain(rawChain)
	if err != nil {
		return nil, err
	}
	subject := digest.Format(d)
	params := map[string]any{"schema": subject, "row_id": rowID}
	if err := h.authorize(subject, capability.CommandEventWrite, params, chain); err != nil {
		return nil, err
	}
	ev, err := h.space.Append(ctx, space.AppendRequest{
		Schema: d,
		RowID:  rowID,
		Value:  value,
		Delete: delete,
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (h *Handlers) eventQuery(ctx context.Context, raw json.RawMessage) (any, error) {
	var params struct {
		Schema string `json:"schema"`
		Filter struct {
			RowIDs   []string `json:"row_ids"`
			Contains string   `json:"contains"`
		} `json:"filter"`
		Offset int      `json:"offset"`
		Limit  *int     `json:"limit"`
		Chain  []string `json:"chain"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	d, err := parseSchemaDigest(params.Schema)
	if err != nil {
		return nil, err
	}
	chain, err := parseChain(params.Chain)
	if err != nil {
		return nil, err
	}
	subject := digest.Format(d)
	if err := h.authorize(subject, capability.CommandEventRead, map[string]any{"schema": subject}, chain); err != nil {
		return nil, err
	}

	limit := -1
	if params.Limit != nil {
		limit = *params.Limit
	}
	limit = h.clampLimit(limit)
	rows, err := h.space.Query(ctx, space.QueryRequest{
		Schema: d,
		Filter: space.Filter{
			RowIDs:   params.Filter.RowIDs,
			Contains: params.Filter.Contains,
		},
		Offset: params.Offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	views := make([]RowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, rowView(row))
	}
	return QueryResult{Rows: views}, nil
}

func (h *Handlers) schemaGet(ctx context.Context, raw json.RawMessage) (any, error) {
	var params struct {
		Digest string   `json:"digest"`
		Title  string   `json:"title"`
		Chain  []string `json:"chain"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if (params.Digest == "") == (params.Title == "") {
		return nil, fmt.Errorf("%w: exactly one of digest or title is required", space.ErrMalformedInput)
	}
	chain, err := parseChain(params.Chain)
	if err != nil {
		return nil, err
	}

	var rec *space.Schema
	if params.Digest != "" {
		d, err := parseSchemaDigest(params.Digest)
		if err != nil {
			return nil, err
		}
		rec, err = h.space.SchemaByDigest(d)
		if err != nil {
			return nil, err
		}
	} else {
		rec, err = h.space.SchemaByTitle(params.Title)
		if err != nil {
			return nil, err
		}
	}

	subject := digest.Format(rec.Digest())
	if err := h.authorize(subject, capability.CommandEventRead, map[string]any{"schema": subject}, chain); err != nil {
		return nil, err
	}
	return schemaView(rec), nil
}

// SchemaList wraps the schemas of a schema_list response.
type SchemaList struct {
	Schemas []SchemaView `json:"schemas"`
}

func (h *Handlers) schemaList(ctx context.Context, raw json.RawMessage) (any, error) {
	var params struct {
		Offset int      `json:"offset"`
		Limit  *int     `json:"limit"`
		Chain  []string `json:"chain"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	limit := -1
	if params.Limit != nil {
		limit = *params.Limit
	}
	if params.Offset < 0 || limit < -1 {
		return nil, fmt.Errorf("%w: negative pagination", space.ErrMalformedInput)
	}
	limit = h.clampLimit(limit)
	chain, err := parseChain(params.Chain)
	if err != nil {
		return nil, err
	}

	all, err := h.space.Schemas(0, -1)
	if err != nil {
		return nil, err
	}

	// A chain narrows the listing to what it can read rather than
	// failing the whole call.
	readable := all
	if len(chain) > 0 {
		readable = readable[:0]
		for _, rec := range all {
			subject := digest.Format(rec.Digest())
			if err := h.authorize(subject, capability.CommandEventRead, map[string]any{"schema": subject}, chain); err == nil {
				readable = append(readable, rec)
			}
		}
	}

	if params.Offset > len(readable) {
		readable = nil
	} else {
		readable = readable[params.Offset:]
	}
	if limit >= 0 && limit < len(readable) {
		readable = readable[:limit]
	}

	views := make([]SchemaView, 0, len(readable))
	for _, rec := range readable {
		views = append(views, schemaView(rec))
	}
	return SchemaList{Schemas: views}, nil
}

func (h *Handlers) status(ctx context.Context, raw json.RawMessage) (any, error) {
	var params struct {
		Chain []string `json:"chain"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	chain, err := parseChain(params.Chain)
	if err != nil {
		return nil, err
	}
	if err := h.authorize(capability.SubjectWildcard, capability.CommandEventRead, nil, chain); err != nil {
		return nil, err
	}

	stats, err := h.space.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return Status{
		Owner:        h.space.Owner(),
		Events:       stats.Events,
		Schemas:      stats.Schemas,
		Capabilities: stats.Capabilities,
		Blobs:        stats.Blobs,
		BlobBytes:    stats.BlobBytes,
	}, nil
}
