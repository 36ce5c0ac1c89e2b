package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"video_ingest_service/internal/ingest/domain"
)

// 測試時替換，避免真的等待
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable only timeouts and HTTP 503 / 504 are worth another try.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *domain.StoreError
	if errors.As(err, &se) {
		return se.Timeout || se.HTTPCode == http.StatusServiceUnavailable || se.HTTPCode == http.StatusGatewayTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryStore runs op until it succeeds, fails permanently, or MaxRetries
// extra attempts are used up. A done ctx stops scheduling new attempts but
// never interrupts a running op. Returns the number of attempts made.
func retryStore(ctx context.Context, policy domain.RetryPolicy, op func(attempt int) error, onRetry func(attempt int, delay time.Duration, err error)) (int, error) {
	var err error
	attempt := 0
	for {
		attempt++
		if err = op(attempt); err == nil {
			return attempt, nil
		}
		if !IsRetryable(err) || attempt > policy.MaxRetries {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, err
		}

		delay := policy.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if sleepErr := sleepFunc(ctx, delay); sleepErr != nil {
			return attempt, err
		}
	}
}
