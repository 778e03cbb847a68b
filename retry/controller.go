package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/juris/ai"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxRetries     = 3
	DefaultRateLimitStep  = 2 * time.Second
	DefaultTransientDelay = time.Second
)

// Sleeper waits for d, returning early with ctx.Err() on cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

// Controller wraps an ai.Embedder with bounded retries. Rate-limited calls
// back off linearly by RateLimitStep per attempt; other transient failures
// wait TransientDelay; fatal failures are returned at once.
type Controller struct {
	embedder       ai.Embedder
	maxRetries     int
	rateLimitStep  time.Duration
	transientDelay time.Duration
	limiter        *rate.Limiter
	sleep          Sleeper
	logger         *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller) error

// WithMaxRetries sets the number of attempts per GetEmbedding call.
func WithMaxRetries(n int) Option {
	return func(c *Controller) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxRetries = n
		return nil
	}
}

// WithRateLimitStep sets the linear backoff unit for rate-limited attempts.
func WithRateLimitStep(d time.Duration) Option {
	return func(c *Controller) error {
		c.rateLimitStep = d
		return nil
	}
}

// WithTransientDelay sets the wait after a transient failure.
func WithTransientDelay(d time.Duration) Option {
	return func(c *Controller) error {
		c.transientDelay = d
		return nil
	}
}

// WithLimiter makes every attempt wait for a token from limiter first.
// Share one limiter between controllers to cap the global request rate.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Controller) error {
		c.limiter = limiter
		return nil
	}
}

// WithSleeper replaces the timer based wait. Used by tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) error {
		c.sleep = s
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) error {
		c.logger = logger
		return nil
	}
}

// New creates a Controller around embedder.
func New(embedder ai.Embedder, opts ...Option) (*Controller, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	c := &Controller{
		embedder:       embedder,
		maxRetries:     DefaultMaxRetries,
		rateLimitStep:  DefaultRateLimitStep,
		transientDelay: DefaultTransientDelay,
		sleep:          Sleep,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "retry")

	return c, nil
}

// MaxRetries returns the configured attempt count.
func (c *Controller) MaxRetries() int {
	return c.maxRetries
}

// GetEmbedding embeds text, retrying according to the kind of each failure.
//
// Rate-limited and transient failures on the final attempt are returned to
// the caller. If every attempt returned an empty vector without error the
// result is ErrNoEmbedding.
func (c *Controller) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vec, err := c.embedder.EmbedText(ctx, text)
		if err == nil {
			if len(vec) > 0 {
				if attempt > 0 {
					c.logger.Debug("embedding succeeded after retry", "attempt", attempt+1)
				}
				return vec, nil
			}
			c.logger.Warn("embedder returned empty vector", "attempt", attempt+1, "maxRetries", c.maxRetries)
			continue
		}

		final := attempt == c.maxRetries-1
		kind := ai.KindOf(err)

		var delay time.Duration
		switch kind {
		case ai.KindFatal:
			c.logger.Error("embedding failed permanently", "attempt", attempt+1, "err", err)
			return nil, err
		case ai.KindRateLimited:
			delay = time.Duration(attempt+1) * c.rateLimitStep
		default:
			delay = c.transientDelay
		}

		if final {
			c.logger.Error("embedding failed, retries exhausted", "kind", kind, "attempts", c.maxRetries, "err", err)
			return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries, err)
		}

		c.logger.Warn("embedding failed, will retry", "kind", kind, "attempt", attempt+1, "delay", delay, "err", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, ErrNoEmbedding
}
