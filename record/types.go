// Package record defines the content record model and its lifecycle.
package record

import (
	"time"

	"github.com/google/uuid"

	"github.com/semidx/semidx/metadata"
)

// ID is the opaque, stable identifier of a content record.
type ID string

// NewID returns a fresh record identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// State tracks a record through its lifecycle:
// Pending -> Embedded -> Indexed -> {Superseded | Deleted}.
type State uint8

const (
	// StatePending marks a record created on ingestion, before an embedding
	// has been assigned.
	StatePending State = iota
	// StateEmbedded marks a record whose vector has been generated or reused
	// but which has not yet been incorporated into the similarity index.
	StateEmbedded
	// StateIndexed marks a record visible to similarity queries.
	StateIndexed
	// StateSuperseded marks a record whose content changed. The vector is
	// retained for audit but the record is excluded from query results and
	// from maintenance repair targets.
	StateSuperseded
	// StateDeleted marks a record removed on explicit deletion or retention
	// expiry. The next maintenance pass drops any remaining index entry.
	StateDeleted
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateEmbedded:
		return "Embedded"
	case StateIndexed:
		return "Indexed"
	case StateSuperseded:
		return "Superseded"
	case StateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateEmbedded || next == StateDeleted
	case StateEmbedded:
		return next == StateIndexed || next == StateSuperseded || next == StateDeleted
	case StateIndexed:
		return next == StateSuperseded || next == StateDeleted
	default:
		return false
	}
}

// Active reports whether the record should be represented in the similarity
// index. Superseded and deleted records are excluded.
func (s State) Active() bool {
	return s == StateEmbedded || s == StateIndexed
}

// ContentRecord is the unit of storage: one ingested piece of content with its
// embedding and metadata.
//
// A record has at most one active vector per ModelVersion. When content
// changes, the record is superseded and a new record starts a fresh cycle; the
// old vector is never mutated in place.
type ContentRecord struct {
	// ID is the opaque, stable record identifier.
	ID ID

	// Fingerprint is the stable hash of the normalized content.
	Fingerprint string

	// ModelVersion identifies the embedding model that produced Vector.
	ModelVersion string

	// Vector is the embedding. When VectorOwner names another record the
	// slice is shared with it, never copied.
	Vector []float32

	// VectorOwner is the record that first produced an embedding for this
	// content under ModelVersion. Equal to ID for originals.
	VectorOwner ID

	// Metadata carries source, tags and other caller-provided keys.
	// Unknown keys are preserved opaquely but not interpreted.
	Metadata metadata.Document

	// State is the lifecycle state.
	State State

	// CreatedAt is the ingestion timestamp.
	CreatedAt time.Time

	// Truncated records that the content exceeded the model input limit and
	// was head-truncated before embedding.
	Truncated bool
}

// Clone returns a copy of the record. The vector slice is shared (vectors are
// immutable once assigned); the metadata document is copied.
func (r ContentRecord) Clone() ContentRecord {
	out := r
	out.Metadata = r.Metadata.Clone()

	return out
}
