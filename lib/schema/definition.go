// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/weft-foundation/weft/lib/digest"
)

// ErrValidation reports a schema document that is not well formed, or
// a value that does not conform to its schema.
var ErrValidation = errors.New("schema: validation failed")

// Form distinguishes the two definition shapes.
type Form int

const (
	// FormTuple is a fixed-order list of typed fields (prefixItems).
	// Values are JSON arrays whose arity equals the field count.
	FormTuple Form = iota + 1

	// FormObject is a flat set of named fields (properties). Values
	// are JSON objects; fields outside the definition are rejected.
	FormObject
)

func (f Form) String() string {
	switch f {
	case FormTuple:
		return "tuple"
	case FormObject:
		return "object"
	default:
		return fmt.Sprintf("form(%d)", int(f))
	}
}

// Field is one typed slot of a definition. Tuple fields are required
// by arity; object fields are required when listed in the document's
// "required" array.
type Field struct {
	Title    string
	Type     string
	Nullable bool
	Primary  bool
	Required bool
}

// fieldTypes are the JSON-Schema type names a definition may use.
var fieldTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
	"null":    true,
}

// Definition is a parsed, canonicalized schema document. Two
// documents that differ only in key order or whitespace parse to
// definitions with the same digest.
type Definition struct {
	title     string
	form      Form
	fields    []Field
	canonical []byte
}

// Parse decodes and checks a schema document. The document must carry
// a non-empty "title" and either "prefixItems" (tuple form) or
// "properties" (object form). Violations wrap [ErrValidation].
func Parse(doc []byte) (*Definition, error) {
	var root map[string]any
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("%w: document is not a JSON object: %v", ErrValidation, err)
	}

	title, _ := root["title"].(string)
	if title == "" {
		return nil, fmt.Errorf("%w: document needs a non-empty title", ErrValidation)
	}

	_, hasTuple := root["prefixItems"]
	_, hasObject := root["properties"]
	if hasTuple && hasObject {
		return nil, fmt.Errorf("%w: document %q mixes prefixItems and properties", ErrValidation, title)
	}

	def := &Definition{title: title}
	var err error
	switch {
	case hasTuple:
		def.form = FormTuple
		def.fields, err = parseTupleFields(title, root)
	case hasObject:
		def.form = FormObject
		def.fields, err = parseObjectFields(title, root)
	default:
		return nil, fmt.Errorf("%w: document %q needs prefixItems or properties", ErrValidation, title)
	}
	if err != nil {
		return nil, err
	}

	primaries := 0
	for _, f := range def.fields {
		if f.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		return nil, fmt.Errorf("%w: document %q marks %d fields primary, want at most 1", ErrValidation, title, primaries)
	}

	// Re-encoding the decoded document sorts object keys and strips
	// whitespace, so semantically identical documents share a digest.
	def.canonical, err = json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("schema: canonicalize %q: %w", title, err)
	}
	return def, nil
}

func parseTupleFields(title string, root map[string]any) ([]Field, error) {
	items, ok := root["prefixItems"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: document %q: prefixItems is not an array", ErrValidation, title)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: document %q: prefixItems is empty", ErrValidation, title)
	}
	if typ, ok := root["type"].(string); ok && typ != "array" {
		return nil, fmt.Errorf("%w: document %q: prefixItems with type %q, want array", ErrValidation, title, typ)
	}
	fields := make([]Field, 0, len(items))
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: document %q: prefixItems[%d] is not an object", ErrValidation, title, i)
		}
		f, err := parseField(title, fmt.Sprintf("prefixItems[%d]", i), item)
		if err != nil {
			return nil, err
		}
		if f.Title == "" {
			return nil, fmt.Errorf("%w: document %q: prefixItems[%d] needs a non-empty title", ErrValidation, title, i)
		}
		f.Required = true
		fields = append(fields, f)
	}
	return fields, nil
}

func parseObjectFields(title string, root map[string]any) ([]Field, error) {
	props, ok := root["properties"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document %q: properties is not an object", ErrValidation, title)
	}
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: document %q: properties is empty", ErrValidation, title)
	}
	if typ, ok := root["type"].(string); ok && typ != "object" {
		return nil, fmt.Errorf("%w: document %q: properties with type %q, want object", ErrValidation, title, typ)
	}

	required := map[string]bool{}
	if rawReq, ok := root["required"]; ok {
		list, ok := rawReq.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: document %q: required is not an array", ErrValidation, title)
		}
		for _, raw := range list {
			name, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: document %q: required entries must be strings", ErrValidation, title)
			}
			if _, exists := props[name]; !exists {
				return nil, fmt.Errorf("%w: document %q: required field %q is not in properties", ErrValidation, title, name)
			}
			required[name] = true
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		item, ok := props[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: document %q: properties[%q] is not an object", ErrValidation, title, name)
		}
		f, err := parseField(title, fmt.Sprintf("properties[%q]", name), item)
		if err != nil {
			return nil, err
		}
		f.Title = name
		f.Required = required[name]
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(title, where string, item map[string]any) (Field, error) {
	var f Field
	if raw, ok := item["title"]; ok {
		f.Title, ok = raw.(string)
		if !ok {
			return Field{}, fmt.Errorf("%w: document %q: %s: title is not a string", ErrValidation, title, where)
		}
	}
	typ, ok := item["type"].(string)
	if !ok || !fieldTypes[typ] {
		return Field{}, fmt.Errorf("%w: document %q: %s: unknown type %v", ErrValidation, title, where, item["type"])
	}
	f.Type = typ
	if raw, ok := item["nullable"]; ok {
		f.Nullable, ok = raw.(bool)
		if !ok {
			return Field{}, fmt.Errorf("%w: document %q: %s: nullable is not a boolean", ErrValidation, title, where)
		}
	}
	if raw, ok := item["primary"]; ok {
		f.Primary, ok = raw.(bool)
		if !ok {
			return Field{}, fmt.Errorf("%w: document %q: %s: primary is not a boolean", ErrValidation, title, where)
		}
	}
	return f, nil
}

// Title returns the document title the registry indexes by.
func (d *Definition) Title() string {
	return d.title
}

// Form returns the definition shape.
func (d *Definition) Form() Form {
	return d.form
}

// Fields returns the typed slots in declaration order (tuple) or
// sorted by name (object).
func (d *Definition) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Primary returns the field marked primary, if any.
func (d *Definition) Primary() (Field, bool) {
	for _, f := range d.fields {
		if f.Primary {
			return f, true
		}
	}
	return Field{}, false
}

// Canonical returns the canonical document bytes. These are the bytes
// the content store persists and the digest covers.
func (d *Definition) Canonical() []byte {
	out := make([]byte, len(d.canonical))
	copy(out, d.canonical)
	return out
}

// Digest returns the content address of the canonical document.
func (d *Definition) Digest() digest.Digest {
	return digest.SumContent(d.canonical)
}
