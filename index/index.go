// Package index defines the similarity index contract: insert/remove over
// record vectors, ranked nearest-neighbor queries, and immutable snapshots
// tagged with a build epoch.
package index

import (
	"errors"
	"fmt"
	"iter"

	"github.com/semidx/semidx/record"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrEntryNotFound indicates a remove of an id the index does not hold.
type ErrEntryNotFound struct {
	ID record.ID
}

func (e *ErrEntryNotFound) Error() string {
	return fmt.Sprintf("index entry not found: %s", e.ID)
}

// Candidate is a raw query result: a record id with its metric score.
type Candidate struct {
	ID    record.ID
	Score float32
}

// Entry is one indexed (record, vector) pair.
type Entry struct {
	ID     record.ID
	Vector []float32
}

// Snapshot is an immutable view of an index used to serve reads consistently
// during concurrent writes and rebuilds.
//
// A query against the latest snapshot reflects every insert and remove
// committed strictly before the snapshot's epoch; writes concurrent with
// snapshot construction may or may not be visible (bounded staleness).
type Snapshot interface {
	// Epoch returns the build epoch this view was published at.
	Epoch() uint64

	// Len returns the number of entries in the view.
	Len() int

	// Search returns up to k candidates ranked by descending score under
	// metric, ties broken by ascending record ID. allow, when non-nil,
	// restricts the candidate set; it is consulted before scoring.
	Search(query []float32, k int, metric Metric, allow func(record.ID) bool) ([]Candidate, error)

	// Entries iterates the view's entries in unspecified order.
	Entries() iter.Seq[Entry]

	// Contains reports whether id is present in the view.
	Contains(id record.ID) bool
}

// Index is a similarity index over record vectors.
//
// Implementations publish immutable snapshots for reads; writers never block
// readers. Exact implementations (flat) serve as the correctness baseline for
// approximate ones.
type Index interface {
	// Insert adds or replaces the vector for id.
	Insert(id record.ID, vector []float32) error

	// Remove drops id from the index.
	Remove(id record.ID) error

	// Snapshot returns the current published view.
	Snapshot() Snapshot

	// Len returns the number of live entries.
	Len() int
}
