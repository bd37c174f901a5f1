// Package blobstore abstracts where snapshot blobs live: local filesystem,
// memory, or an object store (S3, MinIO).
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore reads and writes whole immutable blobs by name.
type BlobStore interface {
	// Put stores the blob read from r under name, replacing any existing
	// blob atomically where the backend allows it.
	Put(ctx context.Context, name string, r io.Reader) error

	// Get opens the named blob for reading. The caller closes it.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes the named blob. Deleting a missing blob returns
	// ErrNotFound.
	Delete(ctx context.Context, name string) error
}
