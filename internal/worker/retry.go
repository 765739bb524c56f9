package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/storyreel/backend/internal/services"
)

const retryDelay = 2 * time.Second

// withRetry runs fn up to attempts times, backing off between tries. Only
// transient provider failures are retried; quota, credential, and policy
// failures would fail the same way again, so they surface immediately.
func withRetry(ctx context.Context, label string, attempts int, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			log.Printf("[Retry] %s attempt %d/%d...", label, attempt, attempts)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", label, ctx.Err())
			case <-time.After(retryDelay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryableKind(lastErr) {
			return lastErr
		}
		log.Printf("[Retry] %s failed (retryable): %v", label, lastErr)
	}
	return lastErr
}

// isRetryableKind limits retries to generic provider failures.
func isRetryableKind(err error) bool {
	return services.KindOf(err) == services.ErrProvider
}
