// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/weft-foundation/weft/lib/event"
	"github.com/weft-foundation/weft/lib/secret"
)

// ErrExists reports a Save against a path that already holds a
// keyfile. Overwriting the only copy of a space's seed is not
// recoverable, so Save never replaces an existing file.
var ErrExists = errors.New("identity: keyfile already exists")

// ErrPassphrase reports a keyfile that did not decrypt with the given
// passphrase.
var ErrPassphrase = errors.New("identity: wrong passphrase")

// maxKeyfileSize bounds how much of a keyfile Load will read. A
// sealed 32-byte seed is a few hundred bytes; anything larger is not
// a keyfile.
const maxKeyfileSize = 1 << 16

// Identity is an ed25519 signing identity. The seed is held in
// protected memory; signing keys are derived from it per operation
// and zeroed after use.
//
// The caller must Close the identity when done with it.
type Identity struct {
	seed   *secret.Buffer
	pubkey event.PubKey
}

// Generate creates a fresh identity from the system entropy source.
func Generate() (*Identity, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("identity: reading entropy: %w", err)
	}
	return FromSeed(seed)
}

// FromSeed builds an identity from a 32-byte ed25519 seed. The seed
// bytes are moved into protected memory and the source slice is
// zeroed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		secret.Zero(seed)
		return nil, fmt.Errorf("identity: seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	buffer, err := secret.NewFromBytes(seed)
	if err != nil {
		return nil, fmt.Errorf("identity: protecting seed: %w", err)
	}

	key := ed25519.NewKeyFromSeed(buffer.Bytes())
	defer secret.Zero(key)
	pubkey, err := event.PubKeyFrom(key.Public().(ed25519.PublicKey))
	if err != nil {
		buffer.Close()
		return nil, fmt.Errorf("identity: %w", err)
	}

	return &Identity{seed: buffer, pubkey: pubkey}, nil
}

// PubKey returns the public half of the identity.
func (id *Identity) PubKey() event.PubKey {
	return id.pubkey
}

// Sign signs an event id. The private key derived for the signature
// is zeroed before Sign returns; only the protected seed persists.
func (id *Identity) Sign(eventID event.ID) (event.Signature, error) {
	key := ed25519.NewKeyFromSeed(id.seed.Bytes())
	defer secret.Zero(key)

	var sig event.Signature
	copy(sig[:], ed25519.Sign(key, eventID[:]))
	return sig, nil
}

// PrivateKey derives the full ed25519 private key, for operations
// that need the raw key such as capability minting. The caller owns
// the returned slice and must zero it (secret.Zero) when done.
func (id *Identity) PrivateKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(id.seed.Bytes())
}

// Close releases the protected seed memory. The identity must not be
// used afterwards.
func (id *Identity) Close() error {
	return id.seed.Close()
}

// Save seals the seed to path, encrypted to an scrypt recipient
// derived from the passphrase. The file is created with mode 0600 and
// never overwrites an existing keyfile. The passphrase is borrowed,
// not closed.
func (id *Identity) Save(path string, passphrase *secret.Buffer) error {
	if passphrase == nil || passphrase.Len() == 0 {
		return fmt.Errorf("identity: passphrase is required")
	}
	recipient, err := age.NewScryptRecipient(passphrase.String())
	if err != nil {
		return fmt.Errorf("identity: building recipient: %w", err)
	}

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipient)
	if err != nil {
		return fmt.Errorf("identity: starting encryption: %w", err)
	}
	if _, err := writer.Write(id.seed.Bytes()); err != nil {
		return fmt.Errorf("identity: sealing seed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("identity: finishing encryption: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("identity: creating keyfile: %w", err)
	}
	if _, err := file.Write(sealed.Bytes()); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("identity: writing keyfile: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("identity: writing keyfile: %w", err)
	}
	return nil
}

// Load opens a keyfile and unseals the identity with the passphrase.
// The passphrase is borrowed, not closed.
func Load(path string, passphrase *secret.Buffer) (*Identity, error) {
	if passphrase == nil || passphrase.Len() == 0 {
		return nil, fmt.Errorf("identity: passphrase is required")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("identity: opening keyfile: %w", err)
	}
	defer file.Close()

	sealed, err := io.ReadAll(io.LimitReader(file, maxKeyfileSize))
	if err != nil {
		return nil, fmt.Errorf("identity: reading keyfile: %w", err)
	}

	ident, err := age.NewScryptIdentity(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("identity: building identity: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(sealed), ident)
	if err != nil {
		var noIdentity *age.NoIdentityMatchError
		if errors.As(err, &noIdentity) {
			return nil, fmt.Errorf("%w: %s", ErrPassphrase, path)
		}
		return nil, fmt.Errorf("identity: unsealing keyfile: %w", err)
	}

	seed, err := io.ReadAll(io.LimitReader(reader, maxKeyfileSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPassphrase, path)
	}
	return FromSeed(seed)
}
