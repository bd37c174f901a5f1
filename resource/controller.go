// Package resource bounds access to the external embedding provider.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds provider resource limits.
type Config struct {
	// MaxConcurrent is the maximum number of in-flight provider calls.
	// If 0, defaults to 4.
	MaxConcurrent int64

	// RequestsPerSecond caps the provider request rate.
	// If 0, unlimited.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. If 0, defaults to
	// max(1, ceil(RequestsPerSecond)).
	Burst int
}

// Controller serializes access to the embedding provider: a weighted semaphore
// bounds concurrency and a token bucket bounds request rate. Excess callers
// queue on Acquire rather than failing.
//
// A nil Controller imposes no limits.
type Controller struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewController creates a controller from cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}

	c := &Controller{
		sem: semaphore.NewWeighted(cfg.MaxConcurrent),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return c
}

// Acquire reserves one provider call slot, blocking until capacity and a rate
// token are available or ctx is done. Callers must Release after the call.
func (c *Controller) Acquire(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.sem.Release(1)
			return err
		}
	}

	return nil
}

// Release returns a previously acquired slot.
func (c *Controller) Release() {
	if c == nil {
		return
	}

	c.sem.Release(1)
}
