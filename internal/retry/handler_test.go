package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastHandlerConfig() HandlerConfig {
	cfg := DefaultHandlerConfig()
	cfg.MaxAttempts = 3
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestHandler_SucceedsWithoutRetryOnFirstTry(t *testing.T) {
	h := NewHandler(fastHandlerConfig())
	calls := 0
	err := h.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestHandler_RetriesRetryableErrorUntilSuccess(t *testing.T) {
	h := NewHandler(fastHandlerConfig())
	calls := 0
	err := h.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestHandler_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	h := NewHandler(fastHandlerConfig())
	calls := 0
	err := h.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errors.New("invalid payload")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestHandler_GivesUpAfterMaxAttempts(t *testing.T) {
	h := NewHandler(fastHandlerConfig())
	calls := 0
	err := h.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errors.New("timeout")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestIsRetryable_ClassifiesTaggedErrors(t *testing.T) {
	assert.True(t, IsRetryable(NewTaggedError("op", KindTransient, errors.New("boom"))))
	assert.True(t, IsRetryable(NewTaggedError("op", KindBatchPartial, errors.New("boom"))))
	assert.False(t, IsRetryable(NewTaggedError("op", KindPermanent, errors.New("boom"))))
}

func TestIsRetryable_MatchesConfiguredSubstrings(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("upstream rate limit exceeded")))
	assert.True(t, IsRetryable(errors.New("service unavailable")))
	assert.False(t, IsRetryable(errors.New("invalid argument")))
	assert.False(t, IsRetryable(nil))
}
