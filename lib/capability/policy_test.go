// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import "testing"

func TestPredicateHolds(t *testing.T) {
	params := map[string]any{
		"row_id": "usr-42",
		"count":  3,
		"ratio":  0.5,
		"flag":   true,
	}

	cases := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"equal_string", Predicate{Op: OpEqual, Param: "row_id", Value: "usr-42"}, true},
		{"equal_string_miss", Predicate{Op: OpEqual, Param: "row_id", Value: "usr-43"}, false},
		{"equal_bool", Predicate{Op: OpEqual, Param: "flag", Value: true}, true},
		{"equal_int_vs_float", Predicate{Op: OpEqual, Param: "count", Value: float64(3)}, true},
		{"equal_float", Predicate{Op: OpEqual, Param: "ratio", Value: 0.5}, true},
		{"equal_number_miss", Predicate{Op: OpEqual, Param: "count", Value: float64(4)}, false},
		{"equal_type_confusion", Predicate{Op: OpEqual, Param: "count", Value: "3"}, false},
		{"missing_param", Predicate{Op: OpEqual, Param: "absent", Value: "x"}, false},
		{"in_hit", Predicate{Op: OpIn, Param: "row_id", Value: []any{"usr-41", "usr-42"}}, true},
		{"in_miss", Predicate{Op: OpIn, Param: "row_id", Value: []any{"usr-41"}}, false},
		{"in_numeric", Predicate{Op: OpIn, Param: "count", Value: []any{float64(1), float64(3)}}, true},
		{"in_empty", Predicate{Op: OpIn, Param: "row_id", Value: []any{}}, false},
		{"in_wrong_value_type", Predicate{Op: OpIn, Param: "row_id", Value: "usr-42"}, false},
		{"prefix_hit", Predicate{Op: OpPrefix, Param: "row_id", Value: "usr-"}, true},
		{"prefix_miss", Predicate{Op: OpPrefix, Param: "row_id", Value: "grp-"}, false},
		{"prefix_empty", Predicate{Op: OpPrefix, Param: "row_id", Value: ""}, true},
		{"prefix_non_string", Predicate{Op: OpPrefix, Param: "count", Value: "3"}, false},
		{"unknown_op", Predicate{Op: "~=", Param: "row_id", Value: "usr-42"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.pred.holds(params); got != tc.want {
				t.Errorf("holds = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCommandCovers(t *testing.T) {
	cases := []struct {
		parent, child string
		want          bool
	}{
		{"/", "/evt/write", true},
		{"/evt", "/evt", true},
		{"/evt", "/evt/write", true},
		{"/evt", "/evt/schema/write", true},
		{"/evt/write", "/evt/write", true},
		{"/evt/write", "/evt", false},
		{"/evt/write", "/evt/schema/write", false},
		{"/evt", "/evtx", false},
		{"/exe", "/evt/write", false},
	}
	for _, tc := range cases {
		if got := commandCovers(tc.parent, tc.child); got != tc.want {
			t.Errorf("commandCovers(%q, %q) = %v, want %v", tc.parent, tc.child, got, tc.want)
		}
	}
}

func TestSubjectCovers(t *testing.T) {
	cases := []struct {
		parent, child string
		want          bool
	}{
		{SubjectWildcard, "abc", true},
		{SubjectWildcard, SubjectWildcard, true},
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"abc", SubjectWildcard, false},
	}
	for _, tc := range cases {
		if got := subjectCovers(tc.parent, tc.child); got != tc.want {
			t.Errorf("subjectCovers(%q, %q) = %v, want %v", tc.parent, tc.child, got, tc.want)
		}
	}
}
