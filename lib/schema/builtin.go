// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/weft-foundation/weft/lib/event"
)

// Titles of the built-in definitions seeded into every space.
const (
	TitleProfile = "weft.profile"
	TitleSpace   = "weft.space"
	TitleProgram = "weft.program"
)

// Profile is the row shape of weft.profile: who a public key claims
// to be.
type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	Picture     string `json:"picture,omitempty"`
}

// SpaceInfo is the row shape of weft.space: the space's own metadata.
type SpaceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Manifest is the row shape of weft.program: an installed program's
// name, version, and entry point.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Main        string `json:"main"`
}

// KindsFor returns the event kind pair used for rows of the titled
// schema. Built-in titles get dedicated kinds; everything else is a
// plain row.
func KindsFor(title string) (mutate, tombstone event.Kind) {
	switch title {
	case TitleProfile:
		return event.KindMutateUser, event.KindDeleteUser
	case TitleSpace:
		return event.KindMutateSpace, event.KindDeleteSpace
	case TitleProgram:
		return event.KindMutateProgram, event.KindDeleteProgram
	default:
		return event.KindMutateRow, event.KindDeleteRow
	}
}

// Builtins returns the three built-in definitions, generated from
// their Go row types. The output is deterministic: seeding a space
// twice produces the same digests.
func Builtins() ([]*Definition, error) {
	specs := []struct {
		title string
		typ   reflect.Type
	}{
		{TitleProfile, reflect.TypeOf(Profile{})},
		{TitleSpace, reflect.TypeOf(SpaceInfo{})},
		{TitleProgram, reflect.TypeOf(Manifest{})},
	}
	defs := make([]*Definition, 0, len(specs))
	for _, spec := range specs {
		def, err := reflectDefinition(spec.title, spec.typ)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// reflectDefinition builds an object-form definition document from a
// Go struct. Fields without omitempty are required.
func reflectDefinition(title string, typ reflect.Type) (*Definition, error) {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	reflected := r.ReflectFromType(typ)

	props := make(map[string]any)
	for pair := reflected.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = map[string]any{"type": pair.Value.Type}
	}
	doc := map[string]any{
		"title":      title,
		"type":       "object",
		"properties": props,
	}
	if len(reflected.Required) > 0 {
		doc["required"] = reflected.Required
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("schema: reflect %q: %w", title, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema: reflect %q: %w", title, err)
	}
	return def, nil
}
