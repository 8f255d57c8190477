// Copyright 2026 The Weft Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"context"
	"errors"
	"sync"

	"github.com/weft-foundation/weft/lib/digest"
)

// ErrNotFound is returned by Get when no blob exists for the digest.
var ErrNotFound = errors.New("content: not found")

// ErrCorrupt is returned by Get when stored bytes no longer hash to
// their address. This indicates storage-level damage, not a caller
// error.
var ErrCorrupt = errors.New("content: stored blob does not match its digest")

// Store files byte documents under their content digest. Put is
// idempotent: storing the same bytes twice returns the same digest and
// leaves one copy. Implementations must be safe for concurrent use.
type Store interface {
	// Put files data under digest.SumContent(data) and returns that
	// digest.
	Put(ctx context.Context, data []byte) (digest.Digest, error)

	// Get returns the bytes filed under d, or ErrNotFound.
	Get(ctx context.Context, d digest.Digest) ([]byte, error)

	// Has reports whether a blob exists for d.
	Has(ctx context.Context, d digest.Digest) (bool, error)
}

// Memory is a map-backed Store for tests and ephemeral spaces.
type Memory struct {
	mu    sync.RWMutex
	blobs map[digest.Digest][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[digest.Digest][]byte)}
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, data []byte) (digest.Digest, error) {
	d := digest.SumContent(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.blobs[d]; !exists {
		owned := make([]byte, len(data))
		copy(owned, data)
		m.blobs[d] = owned
	}
	return d, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, d digest.Digest) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[d]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Has implements Store.
func (m *Memory) Has(_ context.Context, d digest.Digest) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[d]
	return ok, nil
}

// Len returns the number of stored blobs. Useful in tests.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
