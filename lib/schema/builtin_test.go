// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"testing"

	"github.com/weft-foundation/weft/lib/event"
)

func TestBuiltins(t *testing.T) {
	defs, err := Builtins()
	if err != nil {
		t.Fatalf("Builtins: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("Builtins returned %d definitions, want 3", len(defs))
	}

	byTitle := map[string]*Definition{}
	for _, def := range defs {
		byTitle[def.Title()] = def
		if def.Form() != FormObject {
			t.Errorf("%s: Form = %v, want object", def.Title(), def.Form())
		}
	}
	for _, title := range []string{TitleProfile, TitleSpace, TitleProgram} {
		if byTitle[title] == nil {
			t.Errorf("missing built-in %q", title)
		}
	}

	again, err := Builtins()
	if err != nil {
		t.Fatalf("Builtins: %v", err)
	}
	for i := range defs {
		if defs[i].Digest() != again[i].Digest() {
			t.Errorf("built-in %q digest not deterministic", defs[i].Title())
		}
	}
}

func TestBuiltinsValidateTheirRowTypes(t *testing.T) {
	defs, err := Builtins()
	if err != nil {
		t.Fatalf("Builtins: %v", err)
	}
	byTitle := map[string]*Definition{}
	for _, def := range defs {
		byTitle[def.Title()] = def
	}
	v := NewCUEValidator()

	cases := []struct {
		title string
		row   any
	}{
		{TitleProfile, Profile{Username: "ada", DisplayName: "Ada Lovelace"}},
		{TitleSpace, SpaceInfo{Name: "research"}},
		{TitleProgram, Manifest{Name: "notes", Version: "1.0.0", Main: "notes.wasm"}},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			value, err := json.Marshal(tc.row)
			if err != nil {
				t.Fatalf("marshal row: %v", err)
			}
			if err := v.Validate(byTitle[tc.title], value); err != nil {
				t.Errorf("Validate(%s) = %v, want nil", value, err)
			}
		})
	}

	// A profile without its required username must fail.
	if err := v.Validate(byTitle[TitleProfile], []byte(`{"displayName":"Ada"}`)); err == nil {
		t.Error("Validate accepted a profile without username")
	}
}

func TestKindsFor(t *testing.T) {
	cases := []struct {
		title     string
		mutate    event.Kind
		tombstone event.Kind
	}{
		{TitleProfile, event.KindMutateUser, event.KindDeleteUser},
		{TitleSpace, event.KindMutateSpace, event.KindDeleteSpace},
		{TitleProgram, event.KindMutateProgram, event.KindDeleteProgram},
		{"people", event.KindMutateRow, event.KindDeleteRow},
		{"", event.KindMutateRow, event.KindDeleteRow},
	}
	for _, tc := range cases {
		mutate, tombstone := KindsFor(tc.title)
		if mutate != tc.mutate || tombstone != tc.tombstone {
			t.Errorf("KindsFor(%q) = %s, %s; want %s, %s",
				tc.title, mutate, tombstone, tc.mutate, tc.tombstone)
		}
	}
}
