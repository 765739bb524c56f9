package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/storyreel/backend/internal/services"
)

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", 3, func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryRetriesProviderFailures(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", 3, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &services.Error{Kind: services.ErrProvider, Provider: "openai", Message: "timeout"}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	quota := &services.Error{Kind: services.ErrQuotaExceeded, Provider: "openai", Message: "billing limit"}

	calls := 0
	err := withRetry(context.Background(), "test", 3, func(ctx context.Context) error {
		calls++
		return quota
	})

	if !errors.Is(err, quota) {
		t.Errorf("expected the quota error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retries for quota failures, got %d calls", calls)
	}
}

func TestWithRetryReturnsLastError(t *testing.T) {
	failure := &services.Error{Kind: services.ErrProvider, Provider: "openai", Message: "still down"}

	calls := 0
	err := withRetry(context.Background(), "test", 1, func(ctx context.Context) error {
		calls++
		return failure
	})

	if !errors.Is(err, failure) {
		t.Errorf("expected the provider error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, "test", 3, func(ctx context.Context) error {
		calls++
		return &services.Error{Kind: services.ErrProvider, Message: "transient"}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the backoff wait to abort before a second call, got %d calls", calls)
	}
}
