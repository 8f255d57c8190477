// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/hashlink"
)

// testSigner signs with a key derived from a fixed seed so test
// events are reproducible across runs.
type testSigner struct {
	priv   ed25519.PrivateKey
	pubkey PubKey
}

func newTestSigner(t *testing.T, seed byte) *testSigner {
	t.Helper()
	raw := make([]byte, ed25519.SeedSize)
	for i := range raw {
		raw[i] = seed
	}
	priv := ed25519.NewKeyFromSeed(raw)
	pubkey, err := PubKeyFrom(priv.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatalf("PubKeyFrom: %v", err)
	}
	return &testSigner{priv: priv, pubkey: pubkey}
}

func (s *testSigner) PubKey() PubKey {
	return s.pubkey
}

func (s *testSigner) Sign(id ID) (Signature, error) {
	var sig Signature
	copy(sig[:], ed25519.Sign(s.priv, id[:]))
	return sig, nil
}

func testContent(t *testing.T, doc string) hashlink.Link {
	t.Helper()
	link, err := hashlink.FromValue([]byte(doc))
	if err != nil {
		t.Fatalf("FromValue(%q): %v", doc, err)
	}
	return link
}

func TestNewProducesVerifiableEvent(t *testing.T) {
	signer := newTestSigner(t, 1)
	content := testContent(t, `{"name":"Ada"}`)
	tags := []Tag{SchemaTag(content.Hash()), RowIDTag("row-1")}

	ev, err := New(signer, 1700000000, KindMutateRow, tags, content)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ev.ID.IsZero() {
		t.Fatal("New returned zero ID")
	}
	if ev.PubKey != signer.PubKey() {
		t.Errorf("PubKey = %s, want %s", ev.PubKey, signer.PubKey())
	}
	if err := ev.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	signer := newTestSigner(t, 1)
	content := testContent(t, `{"a":1}`)

	if _, err := New(signer, 1700000000, Kind(42), nil, content); err == nil {
		t.Error("New accepted unknown kind")
	}
	if _, err := New(signer, 1700000000, KindMutateRow, nil, hashlink.Link{}); err == nil {
		t.Error("New accepted zero content link")
	}
}

func TestComputeIDIsDeterministic(t *testing.T) {
	signer := newTestSigner(t, 2)
	contentHash := digest.SumContent([]byte(`{"a":1}`))
	tags := []Tag{RowIDTag("row-1")}

	a, err := ComputeID(signer.PubKey(), 1700000000, KindMutateRow, tags, contentHash)
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	b, err := ComputeID(signer.PubKey(), 1700000000, KindMutateRow, tags, contentHash)
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
}

func TestComputeIDCoversEveryField(t *testing.T) {
	signer := newTestSigner(t, 3)
	other := newTestSigner(t, 4)
	contentHash := digest.SumContent([]byte(`{"a":1}`))
	otherHash := digest.SumContent([]byte(`{"a":2}`))
	tags := []Tag{RowIDTag("row-1")}

	base, err := ComputeID(signer.PubKey(), 1700000000, KindMutateRow, tags, contentHash)
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}

	variants := map[string]func() (ID, error){
		"pubkey": func() (ID, error) {
			return ComputeID(other.PubKey(), 1700000000, KindMutateRow, tags, contentHash)
		},
		"createdAt": func() (ID, error) {
			return ComputeID(signer.PubKey(), 1700000001, KindMutateRow, tags, contentHash)
		},
		"kind": func() (ID, error) {
			return ComputeID(signer.PubKey(), 1700000000, KindDeleteRow, tags, contentHash)
		},
		"tags": func() (ID, error) {
			return ComputeID(signer.PubKey(), 1700000000, KindMutateRow, []Tag{RowIDTag("row-2")}, contentHash)
		},
		"content": func() (ID, error) {
			return ComputeID(signer.PubKey(), 1700000000, KindMutateRow, tags, otherHash)
		},
	}
	for field, compute := range variants {
		got, err := compute()
		if err != nil {
			t.Fatalf("ComputeID variant %s: %v", field, err)
		}
		if got == base {
			t.Errorf("changing %s did not change the ID", field)
		}
	}
}

func TestIdentityIgnoresInlineValue(t *testing.T) {
	signer := newTestSigner(t, 5)
	inline := testContent(t, `{"name":"Ada"}`)
	detached := inline.Detached()

	a, err := ComputeID(signer.PubKey(), 1700000000, KindMutateRow, nil, inline.Hash())
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	b, err := ComputeID(signer.PubKey(), 1700000000, KindMutateRow, nil, detached.Hash())
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	if a != b {
		t.Error("inline and detached links of the same content produced different IDs")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	signer := newTestSigner(t, 6)
	content := testContent(t, `{"name":"Ada"}`)
	tags := []Tag{RowIDTag("row-1")}

	ev, err := New(signer, 1700000000, KindMutateRow, tags, content)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tamperedTime := ev
	tamperedTime.CreatedAt++
	if err := tamperedTime.Verify(); !errors.Is(err, ErrIdentity) {
		t.Errorf("tampered createdAt: Verify = %v, want ErrIdentity", err)
	}

	tamperedSig := ev
	tamperedSig.Sig[0] ^= 0xff
	if err := tamperedSig.Verify(); !errors.Is(err, ErrSignature) {
		t.Errorf("tampered sig: Verify = %v, want ErrSignature", err)
	}

	// A signature moved onto a different author must fail even though
	// the ID is recomputed for the new pubkey.
	forged := ev
	forged.PubKey = newTestSigner(t, 7).PubKey()
	forged.ID, err = ComputeID(forged.PubKey, forged.CreatedAt, forged.Kind, forged.Tags, forged.Content.Hash())
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	if err := forged.Verify(); !errors.Is(err, ErrSignature) {
		t.Errorf("forged author: Verify = %v, want ErrSignature", err)
	}
}

func TestMarshalRoundtrip(t *testing.T) {
	signer := newTestSigner(t, 8)
	content := testContent(t, `{"name":"Ada","age":36}`)
	tags := []Tag{SchemaTag(digest.SumContent([]byte("schema"))), RowIDTag("row-1")}

	ev, err := New(signer, 1700000000, KindMutateRow, tags, content)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	for _, field := range []string{`"id"`, `"pubkey"`, `"createdAt"`, `"kind"`, `"tags"`, `"content"`, `"sig"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("marshaled event missing field %s: %s", field, data)
		}
	}

	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := back.Verify(); err != nil {
		t.Fatalf("Verify after roundtrip: %v", err)
	}
	if back.ID != ev.ID || back.CreatedAt != ev.CreatedAt || back.Kind != ev.Kind {
		t.Errorf("roundtrip changed event: got %+v, want %+v", back, ev)
	}
	value, inline := back.Content.Value()
	if !inline {
		t.Fatal("roundtrip dropped inline content value")
	}
	if want := `{"age":36,"name":"Ada"}`; string(value) != want && string(value) != `{"name":"Ada","age":36}` {
		t.Errorf("roundtrip content = %s", value)
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not_json":    "nope",
		"bad_id":      `{"id":"xyz","pubkey":"00","createdAt":1,"kind":100008,"tags":[],"content":"00","sig":"00"}`,
		"bad_tag_len": `{"id":"` + strings.Repeat("0", 64) + `","pubkey":"` + strings.Repeat("0", 64) + `","createdAt":1,"kind":100008,"tags":[["only"]],"content":"` + strings.Repeat("0", 64) + `","sig":"` + strings.Repeat("0", 128) + `"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(raw)); err == nil {
				t.Errorf("Unmarshal accepted %s", raw)
			}
		})
	}
}

func TestTagAccessors(t *testing.T) {
	signer := newTestSigner(t, 9)
	schemaHash := digest.SumContent([]byte("schema"))
	content := testContent(t, `{"a":1}`)

	ev, err := New(signer, 1700000000, KindMutateRow, []Tag{SchemaTag(schemaHash), RowIDTag("row-1")}, content)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := ev.SchemaDigest()
	if err != nil {
		t.Fatalf("SchemaDigest: %v", err)
	}
	if got != schemaHash {
		t.Errorf("SchemaDigest = %s, want %s", got, schemaHash)
	}
	rowID, err := ev.RowID()
	if err != nil {
		t.Fatalf("RowID: %v", err)
	}
	if rowID != "row-1" {
		t.Errorf("RowID = %q, want %q", rowID, "row-1")
	}

	bare, err := New(signer, 1700000000, KindMutateSpace, nil, content)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := bare.SchemaDigest(); !errors.Is(err, ErrTagMissing) {
		t.Errorf("SchemaDigest on untagged event = %v, want ErrTagMissing", err)
	}
	if _, err := bare.RowID(); !errors.Is(err, ErrTagMissing) {
		t.Errorf("RowID on untagged event = %v, want ErrTagMissing", err)
	}

	malformed := ev
	malformed.Tags = []Tag{NewTag(TagSchema, "not-hex")}
	if _, err := malformed.SchemaDigest(); err == nil {
		t.Error("SchemaDigest accepted malformed digest")
	}
}

func TestSupersedes(t *testing.T) {
	older := Event{CreatedAt: 100, ID: ID{1}}
	newer := Event{CreatedAt: 200, ID: ID{2}}
	if !newer.Supersedes(older) {
		t.Error("later createdAt should supersede")
	}
	if older.Supersedes(newer) {
		t.Error("earlier createdAt should not supersede")
	}

	low := Event{CreatedAt: 100, ID: ID{0xaa}}
	high := Event{CreatedAt: 100, ID: ID{0xbb}}
	if !high.Supersedes(low) {
		t.Error("on equal timestamps the greater ID should supersede")
	}
	if low.Supersedes(high) {
		t.Error("on equal timestamps the lesser ID should not supersede")
	}
}

func TestKindProperties(t *testing.T) {
	cases := []struct {
		kind     Kind
		name     string
		isDelete bool
	}{
		{KindMutateUser, "mutate_user", false},
		{KindDeleteUser, "delete_user", true},
		{KindMutateSpace, "mutate_space", false},
		{KindDeleteSpace, "delete_space", true},
		{KindMutateProgram, "mutate_program", false},
		{KindDeleteProgram, "delete_program", true},
		{KindMutateSchema, "mutate_schema", false},
		{KindDeleteSchema, "delete_schema", true},
		{KindMutateRow, "mutate_row", false},
		{KindDeleteRow, "delete_row", true},
	}
	for _, tc := range cases {
		if !tc.kind.Valid() {
			t.Errorf("%s: Valid() = false", tc.name)
		}
		if got := tc.kind.String(); got != tc.name {
			t.Errorf("String() = %q, want %q", got, tc.name)
		}
		if got := tc.kind.IsDelete(); got != tc.isDelete {
			t.Errorf("%s: IsDelete() = %v, want %v", tc.name, got, tc.isDelete)
		}
		if got := tc.kind.IsMutate(); got == tc.isDelete {
			t.Errorf("%s: IsMutate() = %v, want %v", tc.name, got, !tc.isDelete)
		}
	}

	if Kind(99).Valid() {
		t.Error("Kind(99).Valid() = true")
	}
	if got := Kind(99).String(); got != "kind(99)" {
		t.Errorf("Kind(99).String() = %q", got)
	}
	if got := KindMutateRow.Tombstone(); got != KindDeleteRow {
		t.Errorf("KindMutateRow.Tombstone() = %s", got)
	}
	if got := KindDeleteRow.Tombstone(); got != KindDeleteRow {
		t.Errorf("KindDeleteRow.Tombstone() = %s", got)
	}
}

func TestIdentityParsing(t *testing.T) {
	id := ID{0xde, 0xad, 0xbe, 0xef}
	parsed, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if parsed != id {
		t.Errorf("ParseID roundtrip = %s, want %s", parsed, id)
	}
	if got := id.Short(); got != "deadbeef0000" {
		t.Errorf("Short() = %q", got)
	}

	for name, raw := range map[string]string{
		"empty":     "",
		"short":     "abcd",
		"not_hex":   strings.Repeat("zz", 32),
		"too_long":  strings.Repeat("ab", 33),
		"odd_chars": strings.Repeat("a", 63),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseID(raw); err == nil {
				t.Errorf("ParseID(%q) accepted malformed input", raw)
			}
			if _, err := ParsePubKey(raw); err == nil {
				t.Errorf("ParsePubKey(%q) accepted malformed input", raw)
			}
			if _, err := ParseSignature(raw); err == nil {
				t.Errorf("ParseSignature(%q) accepted malformed input", raw)
			}
		})
	}

	var sig Signature
	sig[0] = 0x01
	parsedSig, err := ParseSignature(sig.String())
	if err != nil {
		t.Fatalf("ParseSignature: %v", err)
	}
	if parsedSig != sig {
		t.Error("ParseSignature roundtrip mismatch")
	}
}

func TestEventJSONUsesHexStrings(t *testing.T) {
	signer := newTestSigner(t, 10)
	content := testContent(t, `{"a":1}`)
	ev, err := New(signer, 1700000000, KindMutateRow, nil, content)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	for _, key := range []string{"id", "pubkey", "sig"} {
		raw := string(fields[key])
		if !strings.HasPrefix(raw, `"`) {
			t.Errorf("field %s is not a JSON string: %s", key, raw)
		}
	}
	if string(fields["kind"]) != "100008" {
		t.Errorf("kind = %s, want 100008", fields["kind"])
	}
}
