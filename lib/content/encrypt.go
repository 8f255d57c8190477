// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/secret"
)

// KeySize is the size in bytes of the space content key and all
// per-blob keys derived from it.
const KeySize = 32

// EncryptedBlobVersion is the version byte prepended to all encrypted
// blobs. Included as additional authenticated data (AAD) in the AEAD
// Seal/Open call, so tampering with the version byte causes
// authentication failure.
const EncryptedBlobVersion byte = 0x01

// EncryptedBlobOverhead is the total byte overhead per encrypted blob:
// 1 (version) + 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const EncryptedBlobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoBlobEncryption is the "info" parameter to HKDF-SHA256 when
// deriving per-blob keys, providing domain separation from any future
// derivation path. Changing it invalidates all ciphertext in existing
// space databases.
var hkdfInfoBlobEncryption = []byte("weft.content.blob.enc.v1")

// DeriveBlobKey derives the encryption key for one blob from the
// space content key and the blob's plaintext digest. The same blob
// always derives the same key, so deduplication survives encryption:
// storing identical content twice produces one row.
//
// The spaceKey is borrowed (read via .Bytes()) and is NOT closed by
// this function. The returned Buffer must be closed by the caller.
func DeriveBlobKey(spaceKey *secret.Buffer, d digest.Digest) (*secret.Buffer, error) {
	info := make([]byte, len(hkdfInfoBlobEncryption)+len(d))
	copy(info, hkdfInfoBlobEncryption)
	copy(info[len(hkdfInfoBlobEncryption):], d[:])

	reader := hkdf.New(sha256.New, spaceKey.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	// NewFromBytes copies into guarded memory and zeros the heap slice.
	return secret.NewFromBytes(derived)
}

// EncryptBlob encrypts plaintext using XChaCha20-Poly1305 and returns
// the encrypted blob in the standard format:
//
//	[Version: 1 byte (0x01)] [Nonce: 24 bytes (random)] [Ciphertext+Tag: N+16 bytes]
//
// The version byte and the blob's plaintext digest are included as
// additional authenticated data (AAD). The digest binds the
// ciphertext to its address, so swapping encrypted rows between
// addresses in the database fails authentication.
//
// The blobKey is borrowed and NOT closed. It must be exactly KeySize
// bytes (the output of DeriveBlobKey).
func EncryptBlob(plaintext []byte, blobKey *secret.Buffer, d digest.Digest) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(blobKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	// Generate a random 24-byte nonce.
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	aad := buildAAD(EncryptedBlobVersion, d)

	// Allocate output: version + nonce + ciphertext + tag.
	output := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	output[0] = EncryptedBlobVersion
	copy(output[1:], nonce[:])

	// Seal appends the ciphertext+tag to output.
	output = aead.Seal(output, nonce[:], plaintext, aad)
	return output, nil
}

// DecryptBlob decrypts an encrypted blob produced by EncryptBlob.
// It verifies the version byte, extracts the nonce, and authenticates
// the ciphertext against the AAD (version byte + digest).
//
// Returns an error if:
//   - The blob is too short to contain version + nonce + tag
//   - The version byte is not EncryptedBlobVersion
//   - AEAD authentication fails (wrong key, tampered ciphertext,
//     wrong digest)
//
// The blobKey is borrowed and NOT closed.
func DecryptBlob(encryptedBlob []byte, blobKey *secret.Buffer, d digest.Digest) ([]byte, error) {
	if len(encryptedBlob) < EncryptedBlobOverhead {
		return nil, fmt.Errorf("encrypted blob is %d bytes, minimum is %d (version + nonce + tag)",
			len(encryptedBlob), EncryptedBlobOverhead)
	}

	version := encryptedBlob[0]
	if version != EncryptedBlobVersion {
		return nil, fmt.Errorf("encrypted blob version %d is not supported (expected %d)",
			version, EncryptedBlobVersion)
	}

	nonce := encryptedBlob[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := encryptedBlob[1+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(blobKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	aad := buildAAD(version, d)

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key, tampered data, or mismatched digest): %w", err)
	}

	return plaintext, nil
}

// buildAAD constructs the additional authenticated data for AEAD
// operations: the version byte followed by the plaintext digest.
func buildAAD(version byte, d digest.Digest) []byte {
	aad := make([]byte, 1+len(d))
	aad[0] = version
	copy(aad[1:], d[:])
	return aad
}
