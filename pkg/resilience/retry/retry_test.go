package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meridianhq/sagaflow/pkg/sagaerrors"
)

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	cfg := Config{
		MaxAttempts:           3,
		BaseDelay:             10 * time.Millisecond,
		UseExponentialBackoff: true,
		BackoffMultiplier:     2,
		UseJitter:             false,
	}
	policy := New(cfg, "deduct-stock", nil, nil)

	attempts := 0
	start := time.Now()
	err := policy.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return sagaerrors.New(sagaerrors.KindTransient, "inventory-service unavailable")
		}
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	// Two sleeps of 10ms and 20ms separate the three attempts.
	if elapsed < 30*time.Millisecond {
		t.Fatalf("elapsed = %v, want >= 30ms", elapsed)
	}
}

func TestExecuteStopsAtMaxAttempts(t *testing.T) {
	cfg := Config{MaxAttempts: 2, BaseDelay: time.Millisecond}
	policy := New(cfg, "op", nil, nil)

	attempts := 0
	err := policy.Execute(context.Background(), func(context.Context) error {
		attempts++
		return sagaerrors.New(sagaerrors.KindTransient, "boom")
	})

	if err == nil {
		t.Fatalf("expected a failure after exhausting attempts")
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailures(t *testing.T) {
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Millisecond}
	policy := New(cfg, "op", DefaultClassifier, nil)

	attempts := 0
	permanent := sagaerrors.New(sagaerrors.KindPermanent, "validation failed")
	err := policy.Execute(context.Background(), func(context.Context) error {
		attempts++
		return permanent
	})

	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (permanent failures are not retried by the default classifier)", attempts)
	}
	if !errors.Is(err, permanent) {
		t.Fatalf("expected the original permanent failure to be surfaced unchanged")
	}
}

func TestExecuteNeverRetriesCancellation(t *testing.T) {
	cfg := Config{MaxAttempts: 5, BaseDelay: time.Millisecond}
	policy := New(cfg, "op", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := policy.Execute(ctx, func(context.Context) error {
		attempts++
		cancel()
		return sagaerrors.Wrap(sagaerrors.KindCancelled, ctx.Err(), "op cancelled")
	})

	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
	if !sagaerrors.Is(err, sagaerrors.KindCancelled) {
		t.Fatalf("expected a KindCancelled error, got %v", err)
	}
}

func TestExecuteRetriesTimeoutFailures(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond}
	policy := New(cfg, "op", nil, nil)

	attempts := 0
	err := policy.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return sagaerrors.Wrap(sagaerrors.KindTimeout, context.DeadlineExceeded, "operation exceeded timeout")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (a KindTimeout failure must be retried, not treated as cancellation)", attempts)
	}
}

func TestExecuteCancelledBeforeFirstAttempt(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: time.Millisecond}
	policy := New(cfg, "op", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := policy.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})

	if called {
		t.Fatalf("operation should not run once ctx is already cancelled")
	}
	if !sagaerrors.Is(err, sagaerrors.KindCancelled) {
		t.Fatalf("expected a KindCancelled error, got %v", err)
	}
}

func TestDoReturnsTypedResult(t *testing.T) {
	cfg := Config{MaxAttempts: 1, BaseDelay: time.Millisecond}
	policy := New(cfg, "op", nil, nil)

	result, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		return 42, nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %d, want 42", result)
	}
}

func TestDelayForExponentialBackoffWithoutJitter(t *testing.T) {
	policy := New(Config{
		BaseDelay:             10 * time.Millisecond,
		UseExponentialBackoff: true,
		BackoffMultiplier:     2,
	}, "op", nil, nil)

	cases := map[int]time.Duration{
		1: 10 * time.Millisecond,
		2: 20 * time.Millisecond,
		3: 40 * time.Millisecond,
	}
	for attempt, want := range cases {
		if got := policy.delayFor(attempt); got != want {
			t.Errorf("delayFor(%d) = %v, want %v", attempt, got, want)
		}
	}
}
