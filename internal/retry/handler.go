package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HandlerConfig tunes backoff timing (spec §4.7, config block §5).
type HandlerConfig struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterFactor      float64
}

// DefaultHandlerConfig uses the same 250ms base / 30s cap as C6's
// writer backoff; C4's requeue backoff uses 500ms / 5min instead.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		MaxAttempts:       5,
		BaseDelay:         250 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.2,
	}
}

// Handler runs an operation with exponential-backoff-with-jitter
// retry, reusing cenkalti/backoff/v4 the way C4 (queue requeue) and C6
// (batch commit) already do, gated by IsRetryable classification.
type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Handler{cfg: cfg}
}

// Do invokes fn, retrying on retryable failures up to MaxAttempts. It
// returns the last error encountered (possibly non-retryable, in which
// case it stops immediately).
func (h *Handler) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.cfg.BaseDelay
	b.MaxInterval = h.cfg.MaxDelay
	b.Multiplier = h.cfg.BackoffMultiplier
	b.RandomizationFactor = h.cfg.JitterFactor
	b.Reset()

	var lastErr error
	for attempt := 0; attempt < h.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.NextBackOff()):
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return lastErr
		}
	}
	return lastErr
}
