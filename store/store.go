// Package store provides the durable mapping from record identifier to vector
// and metadata. The Store interface is an abstract record interface; no
// specific storage engine is mandated. MemoryStore is the in-memory reference
// implementation.
package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/semidx/semidx/record"
)

// NotFoundError is returned when a record id does not exist.
type NotFoundError struct {
	ID record.ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s", e.ID)
}

// ConflictError is returned when a put would bind a fingerprint to a vector
// different from the one it already owns. The store never silently overwrites
// one content's vector with another's under the same fingerprint.
type ConflictError struct {
	Fingerprint  string
	ModelVersion string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("fingerprint %s already maps to a different vector under model %s", e.Fingerprint, e.ModelVersion)
}

// Filter selects records during a scan. A nil Filter selects everything.
type Filter func(rec record.ContentRecord) bool

// Store is the vector store CRUD contract.
type Store interface {
	// Put inserts or replaces a record.
	Put(ctx context.Context, rec record.ContentRecord) error

	// Get returns the record for id, or a NotFoundError.
	Get(ctx context.Context, id record.ID) (record.ContentRecord, error)

	// Delete removes the record for id, or returns a NotFoundError.
	Delete(ctx context.Context, id record.ID) error

	// Scan yields records matching filter. The sequence is finite and
	// restartable: each range over it observes a consistent snapshot.
	Scan(ctx context.Context, filter Filter) iter.Seq2[record.ContentRecord, error]

	// Len returns the number of stored records.
	Len(ctx context.Context) (int, error)
}
