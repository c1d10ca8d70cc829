package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meridianhq/sagaflow/pkg/sagaerrors"
)

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := New("inventory-service", Config{
		FailureRatio:      0.5,
		SamplingWindow:    10 * time.Second,
		MinimumThroughput: 3,
		BreakDuration:     time.Minute,
	}, nil)

	for i := 0; i < 10; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return nil })
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	if b.State() != StateClosed {
		t.Fatalf("State() = %v, want StateClosed", b.State())
	}
	if got := b.Counts().TotalSuccesses; got != 10 {
		t.Fatalf("TotalSuccesses = %d, want 10", got)
	}
}

func TestBreakerOpensOnFailureRatioWithMinimumThroughput(t *testing.T) {
	var transitions []string
	b := New("inventory-service", Config{
		FailureRatio:      0.5,
		SamplingWindow:    10 * time.Second,
		MinimumThroughput: 3,
		BreakDuration:     100 * time.Millisecond,
	}, recordingSink(&transitions))

	failing := errors.New("service unavailable")
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error { return failing })
	}

	if b.State() != StateOpen {
		t.Fatalf("State() = %v, want StateOpen", b.State())
	}

	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("op must not run while the breaker is open")
	}
	if !sagaerrors.Is(err, sagaerrors.KindCircuitOpen) {
		t.Fatalf("expected a KindCircuitOpen error, got %v", err)
	}

	if len(transitions) == 0 || transitions[0] != "closed->open" {
		t.Fatalf("transitions = %v, want first entry closed->open", transitions)
	}

	time.Sleep(120 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("State() after BreakDuration = %v, want StateHalfOpen", b.State())
	}
}

func TestBreakerAdmitsExactlyOneHalfOpenProbe(t *testing.T) {
	b := New("inventory-service", Config{
		FailureRatio:      0.5,
		SamplingWindow:    10 * time.Second,
		MinimumThroughput: 1,
		BreakDuration:     20 * time.Millisecond,
	}, nil)

	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("boom") })
	if b.State() != StateOpen {
		t.Fatalf("State() = %v, want StateOpen", b.State())
	}

	time.Sleep(30 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want StateHalfOpen", b.State())
	}

	probeStarted := make(chan struct{})
	probeRelease := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- b.Execute(context.Background(), func(context.Context) error {
			close(probeStarted)
			<-probeRelease
			return nil
		})
	}()
	<-probeStarted

	// A second call while the probe is in flight must be rejected.
	err := b.Execute(context.Background(), func(context.Context) error {
		t.Fatalf("a second probe must not be admitted concurrently")
		return nil
	})
	if !sagaerrors.Is(err, sagaerrors.KindCircuitOpen) {
		t.Fatalf("expected KindCircuitOpen for the rejected second probe, got %v", err)
	}

	close(probeRelease)
	if err := <-probeDone; err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("State() after successful probe = %v, want StateClosed", b.State())
	}
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	b := New("inventory-service", Config{
		FailureRatio:      0.5,
		SamplingWindow:    10 * time.Second,
		MinimumThroughput: 1,
		BreakDuration:     10 * time.Millisecond,
	}, nil)

	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("boom") })
	time.Sleep(15 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want StateHalfOpen", b.State())
	}

	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("still failing") })
	if b.State() != StateOpen {
		t.Fatalf("State() after failed probe = %v, want StateOpen", b.State())
	}
}

func recordingSink(transitions *[]string) *fakeSink {
	return &fakeSink{transitions: transitions}
}
