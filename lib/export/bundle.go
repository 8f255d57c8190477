// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"

	"github.com/weft-foundation/weft/lib/codec"
	"github.com/weft-foundation/weft/lib/digest"
	"github.com/weft-foundation/weft/lib/event"
)

// bundleVersion is the wire version of the bundle payload. Import
// rejects bundles from a newer writer.
const bundleVersion = 1

// maxPayloadSize caps the decompressed payload an import will accept.
// Bundles beyond this are almost certainly decompression bombs, not
// spaces.
const maxPayloadSize = 1 << 30

var (
	// ErrManifest reports a bundle whose payload does not hash to its
	// manifest digest. The bundle was truncated or corrupted in
	// transit.
	ErrManifest = errors.New("export: bundle does not match its manifest digest")

	// ErrVersion reports a bundle written by a newer wire version.
	ErrVersion = errors.New("export: unsupported bundle version")

	// ErrBlob reports a bundle blob whose bytes do not hash to the
	// digest the bundle claims for them.
	ErrBlob = errors.New("export: bundle blob does not match its digest")
)

// header opens the record stream. Counts are advisory for progress
// display; Import cross-checks them against the records.
type header struct {
	Version   int          `cbor:"version"`
	ID        string       `cbor:"id"`
	Space     event.PubKey `cbor:"space"`
	CreatedAt int64        `cbor:"createdAt"`
	Events    int          `cbor:"events"`
	Blobs     int          `cbor:"blobs"`
}

// record carries exactly one of an event or a blob. Events travel in
// their durable JSON form so import re-derives ids from the same
// bytes that were signed.
type record struct {
	Event []byte      `cbor:"event,omitempty"`
	Blob  *blobRecord `cbor:"blob,omitempty"`
}

type blobRecord struct {
	Digest digest.Digest `cbor:"digest"`
	Data   []byte        `cbor:"data"`
}

// bundle is the plaintext payload: blobs first, then events, so an
// importer processing in order always has an event's content on hand.
type bundle struct {
	Header  header   `cbor:"header"`
	Records []record `cbor:"records"`
}

// envelope is the outermost plaintext structure. Digest is the keyed
// export digest of Payload, the deterministic CBOR encoding of the
// bundle.
type envelope struct {
	Payload []byte        `cbor:"payload"`
	Digest  digest.Digest `cbor:"digest"`
}

// seal wraps a bundle payload in its manifest envelope, compresses,
// and encrypts it to the recipients.
func seal(payload []byte, recipients []age.Recipient) ([]byte, error) {
	env := envelope{
		Payload: payload,
		Digest:  digest.SumExport(payload),
	}
	plaintext, err := codec.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("export: encoding envelope: %w", err)
	}

	var out bytes.Buffer
	encrypter, err := age.Encrypt(&out, recipients...)
	if err != nil {
		return nil, fmt.Errorf("export: starting encryption: %w", err)
	}
	compressor, err := zstd.NewWriter(encrypter)
	if err != nil {
		return nil, fmt.Errorf("export: starting compression: %w", err)
	}
	if _, err := compressor.Write(plaintext); err != nil {
		return nil, fmt.Errorf("export: compressing bundle: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return nil, fmt.Errorf("export: finishing compression: %w", err)
	}
	if err := encrypter.Close(); err != nil {
		return nil, fmt.Errorf("export: finishing encryption: %w", err)
	}
	return out.Bytes(), nil
}

// unseal decrypts and decompresses a bundle and verifies its manifest
// digest, returning the bundle payload.
func unseal(data []byte, identity age.Identity) ([]byte, error) {
	decrypted, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, fmt.Errorf("export: decrypting bundle: %w", err)
	}
	decompressor, err := zstd.NewReader(decrypted,
		zstd.WithDecoderMaxMemory(maxPayloadSize),
	)
	if err != nil {
		return nil, fmt.Errorf("export: starting decompression: %w", err)
	}
	defer decompressor.Close()

	plaintext, err := io.ReadAll(io.LimitReader(decompressor, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("export: decompressing bundle: %w", err)
	}

	var env envelope
	if err := codec.Unmarshal(plaintext, &env); err != nil {
		return nil, fmt.Errorf("export: decoding envelope: %w", err)
	}
	if digest.SumExport(env.Payload) != env.Digest {
		return nil, ErrManifest
	}
	return env.Payload, nil
}
