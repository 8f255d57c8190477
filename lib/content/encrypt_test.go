// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/secret"
)

func newTestKey(t *testing.T) *secret.Buffer {
	t.Helper()
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	key, err := secret.NewFromBytes(raw)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	spaceKey := newTestKey(t)
	plaintext := []byte(`{"name":"Ada","role":"engineer"}`)
	d := digest.SumContent(plaintext)

	blobKey, err := DeriveBlobKey(spaceKey, d)
	if err != nil {
		t.Fatalf("DeriveBlobKey: %v", err)
	}
	defer blobKey.Close()

	encrypted, err := EncryptBlob(plaintext, blobKey, d)
	if err != nil {
		t.Fatalf("EncryptBlob: %v", err)
	}

	if len(encrypted) != len(plaintext)+EncryptedBlobOverhead {
		t.Errorf("encrypted length = %d, want %d", len(encrypted), len(plaintext)+EncryptedBlobOverhead)
	}
	if encrypted[0] != EncryptedBlobVersion {
		t.Errorf("version byte = %d, want %d", encrypted[0], EncryptedBlobVersion)
	}

	decrypted, err := DecryptBlob(encrypted, blobKey, d)
	if err != nil {
		t.Fatalf("DecryptBlob: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("roundtrip altered the plaintext")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	spaceKey := newTestKey(t)
	plaintext := []byte(`{"secret":"value"}`)
	d := digest.SumContent(plaintext)

	blobKey, err := DeriveBlobKey(spaceKey, d)
	if err != nil {
		t.Fatalf("DeriveBlobKey: %v", err)
	}
	defer blobKey.Close()

	encrypted, err := EncryptBlob(plaintext, blobKey, d)
	if err != nil {
		t.Fatalf("EncryptBlob: %v", err)
	}

	// Flip a ciphertext byte.
	tampered := make([]byte, len(encrypted))
	copy(tampered, encrypted)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := DecryptBlob(tampered, blobKey, d); err == nil {
		t.Error("DecryptBlob accepted tampered ciphertext")
	}

	// Change the version byte.
	copy(tampered, encrypted)
	tampered[0] = 0x02
	if _, err := DecryptBlob(tampered, blobKey, d); err == nil {
		t.Error("DecryptBlob accepted a wrong version byte")
	}

	// Too short.
	if _, err := DecryptBlob(encrypted[:EncryptedBlobOverhead-1], blobKey, d); err == nil {
		t.Error("DecryptBlob accepted a truncated blob")
	}
}

func TestDecryptBindsDigest(t *testing.T) {
	// A blob re-addressed under a different digest must fail AEAD
	// authentication even with the correct per-blob key.
	spaceKey := newTestKey(t)
	plaintext := []byte(`{"row":"original"}`)
	d := digest.SumContent(plaintext)

	blobKey, err := DeriveBlobKey(spaceKey, d)
	if err != nil {
		t.Fatalf("DeriveBlobKey: %v", err)
	}
	defer blobKey.Close()

	encrypted, err := EncryptBlob(plaintext, blobKey, d)
	if err != nil {
		t.Fatalf("EncryptBlob: %v", err)
	}

	otherDigest := digest.SumContent([]byte("some other address"))
	if _, err := DecryptBlob(encrypted, blobKey, otherDigest); err == nil {
		t.Error("DecryptBlob accepted a blob under the wrong address")
	}
}

func TestDeriveBlobKeyDeterministic(t *testing.T) {
	spaceKey := newTestKey(t)
	d := digest.SumContent([]byte("a document"))

	key1, err := DeriveBlobKey(spaceKey, d)
	if err != nil {
		t.Fatalf("DeriveBlobKey: %v", err)
	}
	defer key1.Close()

	key2, err := DeriveBlobKey(spaceKey, d)
	if err != nil {
		t.Fatalf("DeriveBlobKey: %v", err)
	}
	defer key2.Close()

	if !bytes.Equal(key1.Bytes(), key2.Bytes()) {
		t.Error("DeriveBlobKey is not deterministic for the same digest")
	}

	// Different digests derive different keys.
	other := digest.SumContent([]byte("another document"))
	key3, err := DeriveBlobKey(spaceKey, other)
	if err != nil {
		t.Fatalf("DeriveBlobKey: %v", err)
	}
	defer key3.Close()

	if bytes.Equal(key1.Bytes(), key3.Bytes()) {
		t.Error("different digests derived the same blob key")
	}
}

func TestEncryptionIsNonDeterministic(t *testing.T) {
	// Random nonces: encrypting the same plaintext twice produces
	// different ciphertext.
	spaceKey := newTestKey(t)
	plaintext := []byte(`{"same":"input"}`)
	d := digest.SumContent(plaintext)

	blobKey, err := DeriveBlobKey(spaceKey, d)
	if err != nil {
		t.Fatalf("DeriveBlobKey: %v", err)
	}
	defer blobKey.Close()

	first, err := EncryptBlob(plaintext, blobKey, d)
	if err != nil {
		t.Fatalf("EncryptBlob: %v", err)
	}
	second, err := EncryptBlob(plaintext, blobKey, d)
	if err != nil {
		t.Fatalf("EncryptBlob: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Error("two encryptions produced identical ciphertext (nonce reuse?)")
	}
}
