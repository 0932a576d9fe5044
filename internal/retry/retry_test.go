package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestIsRetryableProperty(t *testing.T) {
	t.Parallel()

	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("5xx is retryable", prop.ForAll(
		func(code int, msg string) bool {
			return IsRetryable(&HTTPStatusError{StatusCode: code, Message: msg})
		},
		gen.IntRange(500, 599),
		gen.AlphaString(),
	))

	properties.Property("4xx other than 408, 425 and 429 is not retryable", prop.ForAll(
		func(code int) bool {
			err := &HTTPStatusError{StatusCode: code}
			switch code {
			case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
				return IsRetryable(err)
			}
			return !IsRetryable(err)
		},
		gen.IntRange(400, 499),
	))

	properties.TestingRun(t)
}

func TestIsRetryableErrors(t *testing.T) {
	t.Parallel()

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))
	assert.False(t, IsRetryable(errors.New("marshal payload")))
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	attempts, err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPStatusError{StatusCode: http.StatusBadGateway}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	attempts, err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		return &HTTPStatusError{StatusCode: http.StatusBadRequest}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestDoExhausts(t *testing.T) {
	t.Parallel()

	attempts, err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		return &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}
	})
	assert.Equal(t, 3, attempts)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)

	var httpErr *HTTPStatusError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestDoHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, cfg, func(context.Context) error {
			return context.DeadlineExceeded
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestCustomClassifier(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(4)
	cfg.Retryable = func(error) bool { return true }
	attempts, err := Do(context.Background(), cfg, func(context.Context) error {
		return errors.New("anything")
	})
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
}

func TestBackoffCapped(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 2*time.Second, Backoff(cfg, 1))
	assert.Equal(t, 4*time.Second, Backoff(cfg, 2))
	assert.Equal(t, 8*time.Second, Backoff(cfg, 3))
	assert.Equal(t, 10*time.Second, Backoff(cfg, 4))
}

func TestWithFallbackSpillsOnExhaustion(t *testing.T) {
	t.Parallel()

	var spilled string
	r := WithFallback(context.Background(), fastConfig(3), "payload",
		func(context.Context, string) error { return context.DeadlineExceeded },
		func(v string) error { spilled = v; return nil },
	)
	assert.False(t, r.OK())
	assert.True(t, r.Spilled)
	assert.NoError(t, r.SpillErr)
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, "payload", spilled)
}

func TestWithFallbackSkipsSpillOnSuccess(t *testing.T) {
	t.Parallel()

	r := WithFallback(context.Background(), fastConfig(3), 42,
		func(context.Context, int) error { return nil },
		func(int) error { t.Fatal("spill called"); return nil },
	)
	assert.True(t, r.OK())
	assert.False(t, r.Spilled)
	assert.Equal(t, 1, r.Attempts)
}

func TestWithFallbackRecordsSpillError(t *testing.T) {
	t.Parallel()

	spillErr := errors.New("disk full")
	r := WithFallback(context.Background(), fastConfig(1), 1,
		func(context.Context, int) error { return &HTTPStatusError{StatusCode: http.StatusForbidden} },
		func(int) error { return spillErr },
	)
	assert.True(t, r.Spilled)
	assert.ErrorIs(t, r.SpillErr, spillErr)
}
