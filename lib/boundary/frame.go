// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package boundary

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameSize caps a single frame's document, both directions. Row
// values are bounded well below this; anything larger is a protocol
// violation, not data.
const maxFrameSize = 1 << 20

// writeFrame marshals document and writes it as one frame: a 4-byte
// big-endian length prefix followed by the JSON bytes.
func writeFrame(w io.Writer, document any) error {
	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("boundary: encoding frame: %w", err)
	}
	if len(data) > maxFrameSize {
		return fmt.Errorf("boundary: frame is %d bytes, limit %d", len(data), maxFrameSize)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("boundary: writing frame: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("boundary: writing frame: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame and returns its JSON
// bytes. A connection closed before the first prefix byte returns
// io.EOF unwrapped so callers can treat it as a silent hangup.
func readFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("boundary: reading frame prefix: %w", err)
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size == 0 {
		return nil, fmt.Errorf("boundary: empty frame")
	}
	if size > maxFrameSize {
		return nil, fmt.Errorf("boundary: frame of %d bytes exceeds limit %d", size, maxFrameSize)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("boundary: reading frame: %w", err)
	}
	return data, nil
}
