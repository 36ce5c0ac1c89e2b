package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"video_ingest_service/internal/ingest/domain"

	"github.com/stretchr/testify/assert"
)

// noSleep records the requested delays instead of waiting.
func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &delays
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(&domain.StoreError{Timeout: true}))
	assert.True(t, IsRetryable(&domain.StoreError{HTTPCode: http.StatusServiceUnavailable}))
	assert.True(t, IsRetryable(&domain.StoreError{HTTPCode: http.StatusGatewayTimeout}))
	assert.False(t, IsRetryable(&domain.StoreError{HTTPCode: http.StatusBadRequest}))
	assert.False(t, IsRetryable(&domain.StoreError{HTTPCode: http.StatusInternalServerError}))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(timeoutErr{}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestRetryStore_SucceedsAfterTransientFailures(t *testing.T) {
	delays := noSleep(t)
	policy := domain.RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, Step: time.Second}

	var retried []int
	attempts, err := retryStore(context.Background(), policy, func(attempt int) error {
		if attempt < 3 {
			return &domain.StoreError{HTTPCode: http.StatusServiceUnavailable}
		}
		return nil
	}, func(attempt int, _ time.Duration, _ error) {
		retried = append(retried, attempt)
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestRetryStore_Exhausted(t *testing.T) {
	noSleep(t)
	policy := domain.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}

	calls := 0
	attempts, err := retryStore(context.Background(), policy, func(int) error {
		calls++
		return &domain.StoreError{Timeout: true}
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, policy.MaxRetries+1, attempts)
	assert.Equal(t, policy.MaxRetries+1, calls)
}

func TestRetryStore_PermanentErrorStopsImmediately(t *testing.T) {
	delays := noSleep(t)

	attempts, err := retryStore(context.Background(), domain.DefaultRetryPolicy(), func(int) error {
		return &domain.StoreError{HTTPCode: http.StatusBadRequest}
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *delays)
}

func TestRetryStore_CancelledContextStopsScheduling(t *testing.T) {
	noSleep(t)
	ctx, cancel := context.WithCancel(context.Background())

	attempts, err := retryStore(ctx, domain.DefaultRetryPolicy(), func(int) error {
		cancel()
		return &domain.StoreError{Timeout: true}
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
