// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, doc string) *Definition {
	t.Helper()
	def, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse(%s): %v", doc, err)
	}
	return def
}

func TestValidateTuple(t *testing.T) {
	v := NewCUEValidator()
	def := mustParse(t, `{
		"title": "people",
		"prefixItems": [
			{"title": "id", "type": "integer", "primary": true},
			{"title": "name", "type": "string"},
			{"title": "note", "type": "string", "nullable": true}
		]
	}`)

	accept := map[string]string{
		"plain":         `[1, "Ada", "mathematician"]`,
		"nullable_null": `[2, "Grace", null]`,
		"negative_id":   `[-3, "Edsger", ""]`,
	}
	for name, value := range accept {
		t.Run("accept_"+name, func(t *testing.T) {
			if err := v.Validate(def, []byte(value)); err != nil {
				t.Errorf("Validate(%s) = %v, want nil", value, err)
			}
		})
	}

	reject := map[string]string{
		"too_short":         `[1, "Ada"]`,
		"too_long":          `[1, "Ada", "x", "y"]`,
		"wrong_type":        `["one", "Ada", "x"]`,
		"float_for_integer": `[1.5, "Ada", "x"]`,
		"null_not_nullable": `[1, null, "x"]`,
		"object_value":      `{"id": 1, "name": "Ada"}`,
		"bare_scalar":       `42`,
		"not_json":          `[1, "Ada"`,
	}
	for name, value := range reject {
		t.Run("reject_"+name, func(t *testing.T) {
			err := v.Validate(def, []byte(value))
			if err == nil {
				t.Fatalf("Validate(%s) accepted nonconforming value", value)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Validate(%s) = %v, want ErrValidation", value, err)
			}
		})
	}
}

func TestValidateObject(t *testing.T) {
	v := NewCUEValidator()
	def := mustParse(t, `{
		"title": "contacts",
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"age": {"type": "integer", "nullable": true},
			"tags": {"type": "array"},
			"meta": {"type": "object"},
			"active": {"type": "boolean"}
		},
		"required": ["name"]
	}`)

	accept := map[string]string{
		"required_only": `{"name": "Ada"}`,
		"all_fields":    `{"name": "Ada", "age": 36, "tags": ["math"], "meta": {"x": 1}, "active": true}`,
		"null_age":      `{"name": "Ada", "age": null}`,
	}
	for name, value := range accept {
		t.Run("accept_"+name, func(t *testing.T) {
			if err := v.Validate(def, []byte(value)); err != nil {
				t.Errorf("Validate(%s) = %v, want nil", value, err)
			}
		})
	}

	reject := map[string]string{
		"missing_required": `{"age": 36}`,
		"unknown_field":    `{"name": "Ada", "nickname": "ada"}`,
		"wrong_type":       `{"name": 7}`,
		"array_value":      `["Ada"]`,
		"null_name":        `{"name": null}`,
	}
	for name, value := range reject {
		t.Run("reject_"+name, func(t *testing.T) {
			err := v.Validate(def, []byte(value))
			if err == nil {
				t.Fatalf("Validate(%s) accepted nonconforming value", value)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Validate(%s) = %v, want ErrValidation", value, err)
			}
		})
	}
}

func TestValidateNilDefinition(t *testing.T) {
	v := NewCUEValidator()
	if err := v.Validate(nil, []byte(`{}`)); !errors.Is(err, ErrValidation) {
		t.Errorf("Validate(nil, ...) = %v, want ErrValidation", err)
	}
}

func TestValidatorCachesConstraints(t *testing.T) {
	v := NewCUEValidator()
	def := mustParse(t, `{"title":"t","prefixItems":[{"title":"a","type":"string"}]}`)

	if err := v.Validate(def, []byte(`["x"]`)); err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	if len(v.cache) != 1 {
		t.Fatalf("cache size = %d, want 1", len(v.cache))
	}
	if err := v.Validate(def, []byte(`["y"]`)); err != nil {
		t.Fatalf("second Validate: %v", err)
	}
	if len(v.cache) != 1 {
		t.Errorf("cache size after repeat = %d, want 1", len(v.cache))
	}
}

func TestConstraintSource(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			"tuple",
			`{"title":"t","prefixItems":[{"title":"a","type":"integer"},{"title":"b","type":"string","nullable":true}]}`,
			`[int, (string | null)]`,
		},
		{
			"object",
			`{"title":"t","properties":{"name":{"type":"string"},"age":{"type":"integer"}},"required":["name"]}`,
			"close({\n\t\"age\"?: int\n\t\"name\": string\n})",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := mustParse(t, tc.doc)
			if got := constraintSource(def); got != tc.want {
				t.Errorf("constraintSource = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateConcurrent(t *testing.T) {
	v := NewCUEValidator()
	def := mustParse(t, `{"title":"t","prefixItems":[{"title":"a","type":"integer"}]}`)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- v.Validate(def, []byte(`[7]`))
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent Validate: %v", err)
		}
	}
}
