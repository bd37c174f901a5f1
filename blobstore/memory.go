package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Compile-time check.
var _ BlobStore = (*Memory)(nil)

// Memory is an in-memory BlobStore for tests and ephemeral use.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Put implements BlobStore.
func (m *Memory) Put(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()

	return nil
}

// Get implements BlobStore.
func (m *Memory) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("blob %q: %w", name, ErrNotFound)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements BlobStore.
func (m *Memory) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[name]; !ok {
		return fmt.Errorf("blob %q: %w", name, ErrNotFound)
	}
	delete(m.blobs, name)

	return nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.blobs)
}
