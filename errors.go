package semidx

import (
	"errors"
	"fmt"

	"github.com/semidx/semidx/embedding"
	"github.com/semidx/semidx/index"
	"github.com/semidx/semidx/record"
	"github.com/semidx/semidx/store"
)

var (
	// ErrInvalidK is returned when a search requests a non-positive top-k.
	ErrInvalidK = errors.New("top-k must be positive")

	// ErrClosed is returned for operations on a closed engine.
	ErrClosed = errors.New("engine is closed")
)

// ProviderError is the embedding backend failure surfaced after the retry
// policy is exhausted. Retryable distinguishes transient exhaustion from
// permanent failure.
type ProviderError = embedding.ProviderError

// ValidationError indicates malformed content or invalid configuration.
// It fails fast and is never retried.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ValidationError struct {
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.cause }

// NotFoundError indicates a lookup of an absent record.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type NotFoundError struct {
	ID    record.ID
	cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.cause }

// IndexInconsistencyError indicates a detected consistency violation between
// the vector store and the similarity index, such as a fingerprint bound to
// two different vectors. It degrades health and triggers a repair pass rather
// than failing in-flight requests beyond the offending one.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type IndexInconsistencyError struct {
	Reason string
	cause  error
}

func (e *IndexInconsistencyError) Error() string {
	return "index inconsistency: " + e.Reason
}

func (e *IndexInconsistencyError) Unwrap() error { return e.cause }

// translateError normalizes component errors into the public taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, embedding.ErrEmptyContent) {
		return &ValidationError{Reason: "content must not be empty", cause: err}
	}
	if errors.Is(err, embedding.ErrInvalidConfig) {
		return &ValidationError{Reason: "invalid embedding config", cause: err}
	}

	var snf *store.NotFoundError
	if errors.As(err, &snf) {
		return &NotFoundError{ID: snf.ID, cause: err}
	}
	var enf *index.ErrEntryNotFound
	if errors.As(err, &enf) {
		return &NotFoundError{ID: enf.ID, cause: err}
	}

	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		return &IndexInconsistencyError{
			Reason: fmt.Sprintf("fingerprint %s already bound to a different vector", conflict.Fingerprint),
			cause:  err,
		}
	}

	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}
