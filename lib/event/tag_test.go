// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"testing"

	"github.com/weft-foundation/weft/lib/digest"
)

func TestTagMarshal(t *testing.T) {
	cases := []struct {
		name string
		tag  Tag
		want string
	}{
		{"two_elements", NewTag("sch", "abc"), `["sch","abc"]`},
		{"three_elements", NewTagExtra("p", "key", "relay"), `["p","key","relay"]`},
		{"empty_extra_is_kept", NewTagExtra("p", "key", ""), `["p","key",""]`},
		{"empty_value", NewTag("id", ""), `["id",""]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.tag)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(data) != tc.want {
				t.Errorf("Marshal = %s, want %s", data, tc.want)
			}
		})
	}
}

func TestTagUnmarshalRoundtrip(t *testing.T) {
	for _, raw := range []string{`["sch","abc"]`, `["p","key","relay"]`, `["p","key",""]`} {
		var tag Tag
		if err := json.Unmarshal([]byte(raw), &tag); err != nil {
			t.Fatalf("Unmarshal(%s): %v", raw, err)
		}
		back, err := json.Marshal(tag)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(back) != raw {
			t.Errorf("roundtrip of %s produced %s", raw, back)
		}
	}
}

func TestTagUnmarshalRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"object":        `{"name":"sch"}`,
		"one_element":   `["sch"]`,
		"four_elements": `["a","b","c","d"]`,
		"numbers":       `[1,2]`,
		"empty_array":   `[]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var tag Tag
			if err := json.Unmarshal([]byte(raw), &tag); err == nil {
				t.Errorf("Unmarshal accepted %s", raw)
			}
		})
	}
}

func TestTagConstructors(t *testing.T) {
	d := digest.SumContent([]byte("schema"))
	sch := SchemaTag(d)
	if sch.Name != TagSchema || sch.Value != d.String() {
		t.Errorf("SchemaTag = %+v", sch)
	}
	if sch.HasExtra() {
		t.Error("SchemaTag should have two elements")
	}

	row := RowIDTag("row-1")
	if row.Name != TagRowID || row.Value != "row-1" {
		t.Errorf("RowIDTag = %+v", row)
	}

	extra := NewTagExtra("p", "key", "relay")
	if !extra.HasExtra() {
		t.Error("NewTagExtra should have three elements")
	}
}
