// Package storage defines the blob backend used to persist screener
// checkpoints. The abstraction keeps the checkpoint protocol independent of
// where the bytes live (local disk, Google Cloud Storage, Postgres, memory).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when the named blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Backend reads and atomically replaces named blobs.
type Backend interface {
	// Read returns the full blob content or ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)
	// Write replaces the named blob. Readers never observe a partial write.
	Write(ctx context.Context, name string, data []byte) error
	// Delete removes the named blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}
