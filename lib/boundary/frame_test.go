// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package boundary

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buffer bytes.Buffer
	document := map[string]any{"action": "status", "offset": 3}

	if err := writeFrame(&buffer, document); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	raw, err := readFrame(&buffer)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshaling frame: %v", err)
	}
	if decoded["action"] != "status" {
		t.Errorf("action round-tripped to %v", decoded["action"])
	}
	if decoded["offset"] != float64(3) {
		t.Errorf("offset round-tripped to %v", decoded["offset"])
	}

	// The stream is drained: a second read sees a clean EOF.
	if _, err := readFrame(&buffer); !errors.Is(err, io.EOF) {
		t.Errorf("read past end: got %v, want io.EOF", err)
	}
}

func TestWriteFrameRejectsOversizedDocument(t *testing.T) {
	var buffer bytes.Buffer
	document := map[string]string{"value": strings.Repeat("x", maxFrameSize)}

	err := writeFrame(&buffer, document)
	if err == nil {
		t.Fatal("expected error writing an oversized frame")
	}
	if buffer.Len() != 0 {
		t.Errorf("oversized frame left %d bytes on the wire", buffer.Len())
	}
}

func TestReadFrameRejectsOversizedPrefix(t *testing.T) {
	var buffer bytes.Buffer
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], maxFrameSize+1)
	buffer.Write(prefix[:])

	if _, err := readFrame(&buffer); err == nil {
		t.Fatal("expected error for a prefix beyond the frame limit")
	}
}

func TestReadFrameRejectsEmptyFrame(t *testing.T) {
	var buffer bytes.Buffer
	buffer.Write([]byte{0, 0, 0, 0})

	if _, err := readFrame(&buffer); err == nil {
		t.Fatal("expected error for a zero-length frame")
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	var buffer bytes.Buffer
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], 10)
	buffer.Write(prefix[:])
	buffer.WriteString("shor")

	_, err := readFrame(&buffer)
	if err == nil {
		t.Fatal("expected error for a truncated frame body")
	}
	// A truncated body is a protocol violation, not a silent hangup.
	if errors.Is(err, io.EOF) {
		t.Errorf("truncated body reported as clean EOF: %v", err)
	}
}

func TestReadFrameTruncatedPrefix(t *testing.T) {
	buffer := bytes.NewBufferString("\x00\x00")

	_, err := readFrame(buffer)
	if err == nil {
		t.Fatal("expected error for a truncated prefix")
	}
	if errors.Is(err, io.EOF) {
		t.Errorf("truncated prefix reported as clean EOF: %v", err)
	}
}
