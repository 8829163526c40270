// Package retry bounds how often a transient gateway failure is retried and
// how long the caller waits between attempts.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	perrors "github.com/p-blackswan/project-assistant/internal/errors"
)

// maxShift caps the doubling so long attempt budgets cannot overflow.
const maxShift = 30

// Config is the retry policy for one gateway operation.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool

	// OnRetry, if set, is called with the 1-based number of the failed
	// attempt before waiting for the next one.
	OnRetry func(attempt int, err error)
}

// DefaultConfig is used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Backoff returns the wait after failed attempt n (1-based): BaseDelay
// doubled per attempt, capped at MaxDelay, and with Jitter drawn from the
// upper half of that range.
func (c Config) Backoff(n int) time.Duration {
	shift := min(max(n-1, 0), maxShift)
	d := c.BaseDelay << shift
	if c.MaxDelay > 0 && (d > c.MaxDelay || d < 0) {
		d = c.MaxDelay
	}
	if c.Jitter && d > 1 {
		half := d / 2
		d = half + rand.N(d-half+1)
	}
	return d
}

// Do runs fn until it succeeds, returns an error that is not retryable, or
// the attempt budget is spent. The last error is returned unchanged.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	budget := max(cfg.MaxAttempts, 1)
	for n := 1; ; n++ {
		err := fn(ctx)
		if err == nil || n >= budget || !perrors.IsRetryable(err) {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(n, err)
		}

		wait := time.NewTimer(cfg.Backoff(n))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}
