// Package memory stores checkpoint blobs in-memory for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/batch-screener/internal/storage"
)

// BlobStore keeps blobs in a map and counts successful writes.
type BlobStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	writes   int
	writeErr error
	readErr  error
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data: make(map[string][]byte),
	}
}

// Read returns a copy of the stored blob or storage.ErrNotFound.
func (s *BlobStore) Read(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	data, ok := s.data[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of data under name.
func (s *BlobStore) Write(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.data[name] = append([]byte(nil), data...)
	s.writes++
	return nil
}

// Delete drops the named blob.
func (s *BlobStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// Writes reports how many writes have succeeded.
func (s *BlobStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// FailWrites makes subsequent writes return err. Pass nil to restore.
func (s *BlobStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailReads makes subsequent reads return err. Pass nil to restore.
func (s *BlobStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}
