// Package embedding turns content into fixed-dimensionality vectors.
//
// The external provider is treated as a pure function of (content, model):
// identical inputs are assumed to yield identical vectors within a model
// version, which is what makes content-addressed deduplication sound. The
// package itself persists nothing.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyContent is returned when content is empty after normalization.
	ErrEmptyContent = errors.New("content must not be empty")

	// ErrInvalidConfig is returned for an unusable model configuration.
	ErrInvalidConfig = errors.New("invalid embedding config")
)

// ProviderError wraps a failed provider call after retries are exhausted.
//
// Retryable distinguishes retryable-exhausted failures (timeouts, rate
// limiting) from non-retryable ones, so callers can apply their own retry
// policy on top.
type ProviderError struct {
	Model     string
	Attempts  int
	Retryable bool
	cause     error
}

func (e *ProviderError) Error() string {
	kind := "non-retryable"
	if e.Retryable {
		kind = "retries exhausted"
	}
	return fmt.Sprintf("embedding provider failed (%s, model %s, %d attempts): %v", kind, e.Model, e.Attempts, e.cause)
}

func (e *ProviderError) Unwrap() error { return e.cause }

// TransientError marks a provider failure as retryable. Providers wrap
// timeouts and rate-limit responses in it; everything else fails fast.
type TransientError struct {
	cause error
}

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{cause: err}
}

func (e *TransientError) Error() string { return "transient: " + e.cause.Error() }

func (e *TransientError) Unwrap() error { return e.cause }

// retryable reports whether a provider call error is worth retrying.
func retryable(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	// Per-attempt timeouts are transient; caller cancellation is not and is
	// distinguished in the retry loop before this check.
	return errors.Is(err, context.DeadlineExceeded)
}

// Provider is the external embedding backend (§ external collaborators).
// Implementations map a batch of content to one vector per element.
type Provider interface {
	Generate(ctx context.Context, contents []string, model string) ([][]float32, error)
}

// Embedder generates vector embeddings for content.
//
// Batch operations are first-class, following common provider API patterns;
// Embed is the single-element convenience.
type Embedder interface {
	// Embed returns a vector embedding for the given content.
	Embed(ctx context.Context, content string) ([]float32, error)

	// EmbedBatch returns one embedding per element of contents, in order.
	EmbedBatch(ctx context.Context, contents []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int

	// Model returns the model version identifier used by this embedder.
	Model() string
}

// Truncator is an optional capability of an Embedder: it exposes the input
// truncation the embedder applies, so callers can fingerprint the content
// that is actually embedded and record the truncation in metadata.
type Truncator interface {
	// Truncate applies the head-truncation policy. The boolean reports
	// whether anything was cut.
	Truncate(content string) (string, bool)
}

// Config enumerates the model parameters and call policy for a Generator.
// It is passed explicitly at construction and never read from ambient state.
type Config struct {
	// Model is the embedding model version identifier.
	Model string

	// Dimension is the expected vector dimensionality.
	Dimension int

	// MaxInputBytes is the input size limit; longer content is
	// head-truncated at a rune boundary. If 0, defaults to 8192.
	MaxInputBytes int

	// BatchSize is the maximum batch handed to the provider per call.
	// If 0, defaults to 16.
	BatchSize int

	// MaxRetries bounds retry attempts for transient provider failures.
	// If 0, defaults to 3.
	MaxRetries int

	// Timeout is the per-attempt provider call timeout. If 0, defaults to
	// 30s. The generator never blocks indefinitely on the provider.
	Timeout time.Duration

	// InitialBackoff is the first retry delay. If 0, defaults to 100ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff. If 0, defaults to 5s.
	MaxBackoff time.Duration
}

func (c *Config) ensureDefaults() error {
	if c.Model == "" || c.Dimension <= 0 {
		return fmt.Errorf("%w: model %q, dimension %d", ErrInvalidConfig, c.Model, c.Dimension)
	}

	if c.MaxInputBytes <= 0 {
		c.MaxInputBytes = 8192
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}

	return nil
}

// truncateHead cuts content to at most maxBytes, backing up to a rune boundary.
func truncateHead(content string, maxBytes int) (string, bool) {
	if len(content) <= maxBytes {
		return content, false
	}

	cut := maxBytes
	for cut > 0 && (content[cut]&0xC0) == 0x80 {
		cut--
	}

	return content[:cut], true
}
