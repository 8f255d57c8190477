// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
)

func TestDomainKeysAreDistinct(t *testing.T) {
	// Domain separation means the same input produces different digests
	// in different domains.
	input := []byte("the same input bytes for both domains")

	contentDigest := SumContent(input)
	exportDigest := SumExport(input)

	if contentDigest == exportDigest {
		t.Error("content and export domain produced the same digest for identical input")
	}
}

func TestDomainKeysAreDeterministic(t *testing.T) {
	input := []byte("deterministic input")

	d1 := SumContent(input)
	d2 := SumContent(input)
	if d1 != d2 {
		t.Error("SumContent produced different results for the same input")
	}

	d3 := SumExport(input)
	d4 := SumExport(input)
	if d3 != d4 {
		t.Error("SumExport produced different results for the same input")
	}
}

func TestDomainKeysDoNotOverlap(t *testing.T) {
	// Verify the key constants are correctly zero-padded and don't
	// share the same bytes (a copy-paste error would be catastrophic).
	keys := []struct {
		name string
		key  domainKey
	}{
		{"content", contentDomainKey},
		{"export", exportDomainKey},
	}

	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[i].key == keys[j].key {
				t.Errorf("domain keys %s and %s are identical", keys[i].name, keys[j].name)
			}
		}
	}

	// Verify each key contains its domain name as a readable prefix.
	for _, key := range keys {
		prefix := "weft."
		keyString := string(key.key[:len(prefix)])
		if keyString != prefix {
			t.Errorf("domain key %s does not start with %q, got %q", key.name, prefix, keyString)
		}
	}
}

func TestSumContentEmptyInput(t *testing.T) {
	// Empty input should still produce a valid (non-zero) keyed digest.
	d := SumContent(nil)
	if d.IsZero() {
		t.Error("SumContent returned zero digest for nil input")
	}

	d2 := SumContent([]byte{})
	if d2.IsZero() {
		t.Error("SumContent returned zero digest for empty slice")
	}

	// nil and empty slice should produce the same digest.
	if d != d2 {
		t.Error("SumContent(nil) != SumContent([]byte{})")
	}
}

func TestFormat(t *testing.T) {
	d := SumContent([]byte("test"))
	formatted := Format(d)

	if len(formatted) != 64 {
		t.Errorf("Format length = %d, want 64", len(formatted))
	}

	// Verify it's valid hex.
	_, err := hex.DecodeString(formatted)
	if err != nil {
		t.Errorf("Format produced invalid hex: %v", err)
	}
}

func TestParse(t *testing.T) {
	original := SumContent([]byte("roundtrip test"))
	formatted := Format(original)

	parsed, err := Parse(formatted)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed != original {
		t.Errorf("Parse roundtrip failed: got %s, want %s",
			Format(parsed), Format(original))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too_short", "abcdef"},
		{"too_long", strings.Repeat("ab", 33)},
		{"invalid_hex", strings.Repeat("zz", 32)},
		{"odd_length", strings.Repeat("a", 63)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestShort(t *testing.T) {
	d := SumContent([]byte("test"))
	short := Short(d)

	if len(short) != 12 {
		t.Errorf("Short length = %d, want 12", len(short))
	}
	if !strings.HasPrefix(Format(d), short) {
		t.Errorf("Short %q is not a prefix of full digest %q", short, Format(d))
	}
}

func TestTextMarshalRoundtrip(t *testing.T) {
	original := SumContent([]byte("json roundtrip"))

	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	// Digests serialize as quoted hex strings, not base64 byte arrays.
	want := `"` + Format(original) + `"`
	if string(encoded) != want {
		t.Errorf("json.Marshal = %s, want %s", encoded, want)
	}

	var decoded Digest
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if decoded != original {
		t.Errorf("JSON roundtrip failed: got %s, want %s",
			Format(decoded), Format(original))
	}
}

func TestUnmarshalTextRejectsMalformed(t *testing.T) {
	var d Digest
	if err := d.UnmarshalText([]byte("not hex at all")); err == nil {
		t.Error("UnmarshalText accepted malformed input")
	}
}

func TestIsZero(t *testing.T) {
	var zero Digest
	if !zero.IsZero() {
		t.Error("zero digest reported IsZero() == false")
	}
	if SumContent([]byte("x")).IsZero() {
		t.Error("non-zero digest reported IsZero() == true")
	}
}
