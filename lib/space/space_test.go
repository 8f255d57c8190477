// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/weft-foundation/weft/lib/capability"
	"github.com/weft-foundation/weft/lib/clock"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/schema"
)

var spaceTestEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// testSigner is a deterministic ed25519 signer for tests.
type testSigner struct {
	key ed25519.PrivateKey
	pub event.PubKey
}

func newTestSigner(t *testing.T, seed byte) *testSigner {
	t.Helper()
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	pub, err := event.PubKeyFrom(key.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatal(err)
	}
	return &testSigner{key: key, pub: pub}
}

func (s *testSigner) PubKey() event.PubKey { return s.pub }

func (s *testSigner) Sign(id event.ID) (event.Signature, error) {
	var sig event.Signature
	copy(sig[:], ed25519.Sign(s.key, id[:]))
	return sig, nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.Default()
}

// openTestSpace opens a fresh space owned by signer seed 1.
func openTestSpace(t *testing.T) (*Space, *clock.FakeClock) {
	t.Helper()
	return openTestSpaceWith(t, filepath.Join(t.TempDir(), "space_test.db"), newTestSigner(t, 1))
}

func openTestSpaceWith(t *testing.T, path string, signer event.Signer) (*Space, *clock.FakeClock) {
	t.Helper()

	fakeClock := clock.Fake(spaceTestEpoch)
	s, err := Open(context.Background(), Config{
		Path:     path,
		Signer:   signer,
		Clock:    fakeClock,
		Logger:   testLogger(t),
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s, fakeClock
}

const peopleDoc = `{
	"title": "people",
	"type": "array",
	"prefixItems": [
		{"title": "id", "type": "integer", "primary": true},
		{"title": "name", "type": "string"}
	]
}`

func registerPeople(t *testing.T, s *Space) *Schema {
	t.Helper()
	rec, err := s.LoadOrCreateSchema(context.Background(), []byte(peopleDoc))
	if err != nil {
		t.Fatalf("LoadOrCreateSchema: %v", err)
	}
	return rec
}

func digestOf(t *testing.T, doc string) digest.Digest {
	t.Helper()
	return digest.SumContent([]byte(doc))
}

func TestOpenValidatesConfig(t *testing.T) {
	signer := newTestSigner(t, 1)
	fakeClock := clock.Fake(spaceTestEpoch)
	logger := testLogger(t)
	path := filepath.Join(t.TempDir(), "space.db")

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing path",
			cfg:  Config{Signer: signer, Clock: fakeClock, Logger: logger},
			want: "Path is required",
		},
		{
			name: "missing signer",
			cfg:  Config{Path: path, Clock: fakeClock, Logger: logger},
			want: "Signer is required",
		},
		{
			name: "missing clock",
			cfg:  Config{Path: path, Signer: signer, Logger: logger},
			want: "Clock is required",
		},
		{
			name: "missing logger",
			cfg:  Config{Path: path, Signer: signer, Clock: fakeClock},
			want: "Logger is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			if err == nil {
				t.Fatal("Open succeeded, want error")
			}
			if got := err.Error(); !strings.Contains(got, tt.want) {
				t.Errorf("error = %q, want it to mention %q", got, tt.want)
			}
		})
	}
}

func TestOpenSeedsBuiltins(t *testing.T) {
	s, _ := openTestSpace(t)

	for _, title := range []string{schema.TitleProfile, schema.TitleSpace, schema.TitleProgram} {
		rec, err := s.SchemaByTitle(title)
		if err != nil {
			t.Fatalf("SchemaByTitle(%q): %v", title, err)
		}
		if rec.Sequence.Len() != 1 {
			t.Errorf("builtin %q sequence length = %d, want 1", title, rec.Sequence.Len())
		}
		if rec.Author != s.Owner() {
			t.Errorf("builtin %q author = %s, want space owner", title, rec.Author.Short())
		}
	}
}

func TestReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "space.db")
	signer := newTestSigner(t, 1)

	s, err := Open(ctx, Config{
		Path:   path,
		Signer: signer,
		Clock:  clock.Fake(spaceTestEpoch),
		Logger: testLogger(t),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	people := registerPeople(t, s)
	ev, err := s.Append(ctx, AppendRequest{
		Schema: people.Digest(),
		RowID:  "ada",
		Value:  []byte(`[1, "Ada"]`),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, _ := openTestSpaceWith(t, path, signer)

	rec, err := reopened.SchemaByTitle("people")
	if err != nil {
		t.Fatalf("SchemaByTitle after reopen: %v", err)
	}
	if rec.Digest() != people.Digest() {
		t.Errorf("schema digest changed across reopen: %s != %s", rec.Digest(), people.Digest())
	}

	rows, err := reopened.Query(ctx, QueryRequest{Schema: people.Digest(), Limit: -1})
	if err != nil {
		t.Fatalf("Query after reopen: %v", err)
	}
	if len(rows) != 1 || rows[0].RowID != "ada" {
		t.Fatalf("rows after reopen = %+v, want the ada row", rows)
	}
	if rows[0].Content.Hash() != ev.Content.Hash() {
		t.Errorf("row content = %s, want %s", rows[0].Content, ev.Content)
	}

	// Builtins must not be re-appended on reopen.
	stats, err := reopened.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Events != 5 { // 3 builtins + people + one row
		t.Errorf("events after reopen = %d, want 5", stats.Events)
	}
}

func TestStats(t *testing.T) {
	s, _ := openTestSpace(t)
	ctx := context.Background()

	people := registerPeople(t, s)
	if _, err := s.Append(ctx, AppendRequest{Schema: people.Digest(), Value: []byte(`[1, "Ada"]`)}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Events != 5 {
		t.Errorf("Events = %d, want 5", stats.Events)
	}
	if stats.Schemas != 4 {
		t.Errorf("Schemas = %d, want 4", stats.Schemas)
	}
	if stats.Blobs == 0 || stats.BlobBytes == 0 {
		t.Errorf("Blobs = %d, BlobBytes = %d, want both > 0", stats.Blobs, stats.BlobBytes)
	}
	if stats.Capabilities != 0 {
		t.Errorf("Capabilities = %d, want 0", stats.Capabilities)
	}
}

func TestAuthorizeRootBypass(t *testing.T) {
	s, _ := openTestSpace(t)

	decision := s.Authorize(capability.Request{
		Subject: "whatever",
		Command: capability.CommandEventWrite,
		Caller:  s.Owner(),
	}, nil)
	if !decision.Allowed {
		t.Errorf("root with empty chain denied: %s", decision.Reason)
	}

	stranger := newTestSigner(t, 9)
	decision = s.Authorize(capability.Request{
		Subject: "whatever",
		Command: capability.CommandEventWrite,
		Caller:  stranger.PubKey(),
	}, nil)
	if decision.Allowed {
		t.Error("stranger with empty chain allowed")
	}
	if decision.Reason != capability.ReasonEmptyChain {
		t.Errorf("reason = %s, want %s", decision.Reason, capability.ReasonEmptyChain)
	}
}

func TestCapabilityWallet(t *testing.T) {
	s, _ := openTestSpace(t)
	ctx := context.Background()

	owner := newTestSigner(t, 1)
	alice := newTestSigner(t, 2)
	bob := newTestSigner(t, 3)

	mint := func(audience event.PubKey, command string) *capability.Token {
		t.Helper()
		token, err := capability.Mint(owner.key, capability.Capability{
			Issuer:   owner.PubKey(),
			Audience: audience,
			Subject:  capability.SubjectWildcard,
			Command:  command,
		})
		if err != nil {
			t.Fatalf("Mint: %v", err)
		}
		return token
	}

	forAlice := mint(alice.PubKey(), capability.CommandEventRead)
	forBob := mint(bob.PubKey(), capability.CommandEventWrite)
	for _, token := range []*capability.Token{forAlice, forBob} {
		if err := s.StoreCapability(ctx, token); err != nil {
			t.Fatalf("StoreCapability: %v", err)
		}
	}

	// Re-storing the same nonce replaces, not duplicates.
	if err := s.StoreCapability(ctx, forAlice); err != nil {
		t.Fatalf("StoreCapability again: %v", err)
	}

	all, err := s.Capabilities(ctx)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Capabilities returned %d tokens, want 2", len(all))
	}

	aliceTokens, err := s.CapabilitiesFor(ctx, alice.PubKey())
	if err != nil {
		t.Fatalf("CapabilitiesFor: %v", err)
	}
	if len(aliceTokens) != 1 {
		t.Fatalf("CapabilitiesFor(alice) returned %d tokens, want 1", len(aliceTokens))
	}
	got := aliceTokens[0].Capability()
	if got.Command != capability.CommandEventRead {
		t.Errorf("alice token command = %q, want %q", got.Command, capability.CommandEventRead)
	}

	if err := s.DeleteCapability(ctx, got.Nonce); err != nil {
		t.Fatalf("DeleteCapability: %v", err)
	}
	aliceTokens, err = s.CapabilitiesFor(ctx, alice.PubKey())
	if err != nil {
		t.Fatalf("CapabilitiesFor after delete: %v", err)
	}
	if len(aliceTokens) != 0 {
		t.Errorf("CapabilitiesFor(alice) after delete returned %d tokens, want 0", len(aliceTokens))
	}

	// Deleting an unknown nonce is a no-op.
	if err := s.DeleteCapability(ctx, "no-such-nonce"); err != nil {
		t.Errorf("DeleteCapability(unknown): %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Capabilities != 1 {
		t.Errorf("Capabilities stat = %d, want 1", stats.Capabilities)
	}
}

func TestSchemaNotFound(t *testing.T) {
	s, _ := openTestSpace(t)
	ctx := context.Background()

	bogus := digestOf(t, `{"bogus": true}`)
	if _, err := s.Query(ctx, QueryRequest{Schema: bogus, Limit: -1}); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("Query error = %v, want ErrSchemaNotFound", err)
	}
	if _, err := s.Append(ctx, AppendRequest{Schema: bogus, Value: []byte(`[1, "x"]`)}); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("Append error = %v, want ErrSchemaNotFound", err)
	}
	if _, err := s.SchemaByDigest(bogus); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("SchemaByDigest error = %v, want ErrSchemaNotFound", err)
	}
	if _, err := s.SchemaByTitle("no-such-title"); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("SchemaByTitle error = %v, want ErrSchemaNotFound", err)
	}
}
