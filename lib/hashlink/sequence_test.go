// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package hashlink

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/weft-foundation/weft/lib/digest"
)

func TestAppendIsPure(t *testing.T) {
	d1 := digest.SumContent([]byte("v1"))
	d2 := digest.SumContent([]byte("v2"))

	base := SequenceOf(d1)
	extended := base.Append(d2)

	if base.Len() != 1 {
		t.Errorf("Append mutated the receiver: Len = %d, want 1", base.Len())
	}
	if extended.Len() != 2 {
		t.Errorf("extended Len = %d, want 2", extended.Len())
	}
	if extended.At(0) != d1 || extended.At(1) != d2 {
		t.Error("extended sequence has wrong entries")
	}

	// Appending to the base again must not corrupt the first extension.
	d3 := digest.SumContent([]byte("v3"))
	other := base.Append(d3)
	if extended.At(1) != d2 {
		t.Error("second Append from the same base corrupted the first extension")
	}
	if other.At(1) != d3 {
		t.Error("second extension has wrong entry")
	}
}

func TestPrincipalIsLast(t *testing.T) {
	d1 := digest.SumContent([]byte("v1"))
	d2 := digest.SumContent([]byte("v2"))

	var empty Sequence
	if _, ok := empty.Principal(); ok {
		t.Error("empty sequence reported a principal")
	}

	seq := SequenceOf(d1, d2)
	principal, ok := seq.Principal()
	if !ok {
		t.Fatal("non-empty sequence reported no principal")
	}
	if principal != d2 {
		t.Errorf("principal = %s, want %s", principal, digest.Format(d2))
	}
}

func TestCanonicalForm(t *testing.T) {
	d1 := digest.SumContent([]byte("v1"))
	d2 := digest.SumContent([]byte("v2"))
	seq := SequenceOf(d1, d2)

	canonical, err := seq.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}

	want := fmt.Sprintf(`[%q,%q]`, digest.Format(d1), digest.Format(d2))
	if string(canonical) != want {
		t.Errorf("Canonical = %s, want %s", canonical, want)
	}
}

func TestParseSequenceDetachesInlineEntries(t *testing.T) {
	// A sequence document arriving with inline values keeps only the
	// digests.
	doc := []byte(`{"title":"v1"}`)
	d := digest.SumContent(doc)
	input := fmt.Sprintf(`[{"hash":%q,"value":{"title":"v1"}}]`, digest.Format(d))

	seq, err := ParseSequence([]byte(input))
	if err != nil {
		t.Fatalf("ParseSequence: %v", err)
	}
	if seq.Len() != 1 {
		t.Fatalf("Len = %d, want 1", seq.Len())
	}
	if seq.At(0) != d {
		t.Errorf("entry = %s, want %s", seq.At(0), digest.Format(d))
	}

	// Re-serializing produces the canonical detached form.
	canonical, err := seq.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	want := fmt.Sprintf(`[%q]`, digest.Format(d))
	if string(canonical) != want {
		t.Errorf("Canonical = %s, want %s", canonical, want)
	}
}

func TestParseSequenceRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not_array", `{"a":1}`},
		{"bad_entry", `[42]`},
		{"bad_digest", `["zz"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSequence([]byte(tt.input)); err == nil {
				t.Errorf("ParseSequence(%s) succeeded, want error", tt.input)
			}
		})
	}
}

func TestSequenceDigestTracksLineage(t *testing.T) {
	d1 := digest.SumContent([]byte("v1"))
	d2 := digest.SumContent([]byte("v2"))

	seq1 := SequenceOf(d1)
	seq2 := seq1.Append(d2)

	digest1, err := seq1.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	digest2, err := seq2.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if digest1 == digest2 {
		t.Error("appending a version did not change the sequence digest")
	}

	// Deterministic.
	again, err := seq2.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if again != digest2 {
		t.Error("sequence digest is not deterministic")
	}
}

func TestContains(t *testing.T) {
	d1 := digest.SumContent([]byte("v1"))
	d2 := digest.SumContent([]byte("v2"))
	absent := digest.SumContent([]byte("never added"))

	seq := SequenceOf(d1, d2)
	if !seq.Contains(d1) || !seq.Contains(d2) {
		t.Error("Contains missed a present digest")
	}
	if seq.Contains(absent) {
		t.Error("Contains reported an absent digest")
	}
}

func TestSequenceJSONRoundtrip(t *testing.T) {
	seq := SequenceOf(
		digest.SumContent([]byte("v1")),
		digest.SumContent([]byte("v2")),
		digest.SumContent([]byte("v3")),
	)

	encoded, err := json.Marshal(seq)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Sequence
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Len() != seq.Len() {
		t.Fatalf("roundtrip Len = %d, want %d", decoded.Len(), seq.Len())
	}
	for i := range seq.Len() {
		if decoded.At(i) != seq.At(i) {
			t.Errorf("entry %d changed in roundtrip", i)
		}
	}
}
