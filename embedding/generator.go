package embedding

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/semidx/semidx/resource"
)

// Compile-time checks.
var (
	_ Embedder  = (*Generator)(nil)
	_ Truncator = (*Generator)(nil)
)

// Generator is the embedding generator: it validates and truncates content,
// drives the external provider through a bounded-concurrency controller, and
// retries transient failures with exponential backoff and jitter.
type Generator struct {
	cfg      Config
	provider Provider
	ctrl     *resource.Controller
	logger   *slog.Logger
}

// GeneratorOptions contains construction options for a Generator.
type GeneratorOptions struct {
	// Controller bounds concurrent provider calls. If nil, a default
	// controller is created from resource.Config zero values.
	Controller *resource.Controller

	// Logger receives retry warnings. If nil, logging is disabled.
	Logger *slog.Logger
}

// NewGenerator creates a Generator for the given provider and model config.
func NewGenerator(provider Provider, cfg Config, optFns ...func(o *GeneratorOptions)) (*Generator, error) {
	if provider == nil {
		return nil, errors.New("provider must not be nil")
	}

	if err := cfg.ensureDefaults(); err != nil {
		return nil, err
	}

	opts := GeneratorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Controller == nil {
		opts.Controller = resource.NewController(resource.Config{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Generator{
		cfg:      cfg,
		provider: provider,
		ctrl:     opts.Controller,
		logger:   opts.Logger,
	}, nil
}

// Dimension returns the configured vector dimensionality.
func (g *Generator) Dimension() int { return g.cfg.Dimension }

// Model returns the model version identifier.
func (g *Generator) Model() string { return g.cfg.Model }

// Truncate implements Truncator using the configured head-truncation limit.
func (g *Generator) Truncate(content string) (string, bool) {
	return truncateHead(content, g.cfg.MaxInputBytes)
}

// Embed returns the embedding for a single piece of content.
func (g *Generator) Embed(ctx context.Context, content string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{content})
	if err != nil {
		return nil, err
	}

	return vecs[0], nil
}

// EmbedBatch embeds contents in provider-sized chunks, in order. Validation
// failures (empty content) fail the whole batch up front; callers needing
// per-item outcomes split batches themselves.
func (g *Generator) EmbedBatch(ctx context.Context, contents []string) ([][]float32, error) {
	if len(contents) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(contents))
	for i, content := range contents {
		if strings.TrimSpace(content) == "" {
			return nil, ErrEmptyContent
		}
		prepared[i], _ = g.Truncate(content)
	}

	out := make([][]float32, 0, len(prepared))
	for start := 0; start < len(prepared); start += g.cfg.BatchSize {
		end := min(start+g.cfg.BatchSize, len(prepared))

		vecs, err := g.generateWithRetry(ctx, prepared[start:end])
		if err != nil {
			return nil, err
		}

		out = append(out, vecs...)
	}

	return out, nil
}

func (g *Generator) generateWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error

	backoff := g.cfg.InitialBackoff
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		vecs, err := g.generateOnce(ctx, batch)
		if err == nil {
			if err := g.checkDimensions(vecs, len(batch)); err != nil {
				return nil, err
			}
			return vecs, nil
		}

		// Caller cancellation is not a provider failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if !retryable(err) {
			return nil, &ProviderError{Model: g.cfg.Model, Attempts: attempt, Retryable: false, cause: err}
		}

		if attempt == g.cfg.MaxRetries {
			break
		}

		g.logger.WarnContext(ctx, "embedding call failed, retrying",
			"model", g.cfg.Model,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		// Full jitter: sleep a uniform fraction of the current backoff.
		delay := time.Duration(rand.Int64N(int64(backoff) + 1))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		backoff = min(backoff*2, g.cfg.MaxBackoff)
	}

	return nil, &ProviderError{Model: g.cfg.Model, Attempts: g.cfg.MaxRetries, Retryable: true, cause: lastErr}
}

func (g *Generator) generateOnce(ctx context.Context, batch []string) ([][]float32, error) {
	if err := g.ctrl.Acquire(ctx); err != nil {
		return nil, err
	}
	defer g.ctrl.Release()

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	return g.provider.Generate(callCtx, batch, g.cfg.Model)
}

func (g *Generator) checkDimensions(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return &ProviderError{
			Model:    g.cfg.Model,
			Attempts: 1,
			cause:    errors.New("provider returned wrong result count"),
		}
	}

	for _, v := range vecs {
		if len(v) != g.cfg.Dimension {
			return &ProviderError{
				Model:    g.cfg.Model,
				Attempts: 1,
				cause:    errors.New("provider returned wrong vector dimensionality"),
			}
		}
	}

	return nil
}
