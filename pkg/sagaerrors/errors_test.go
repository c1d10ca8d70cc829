package sagaerrors

import (
	"context"
	"errors"
	"testing"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindTransient, cause, "calling inventory-service")

	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap chain to reach cause")
	}
	if got, ok := KindOf(err); !ok || got != KindTransient {
		t.Fatalf("KindOf = %v, %v; want KindTransient, true", got, ok)
	}
	if !Is(err, KindTransient) {
		t.Fatalf("Is(err, KindTransient) = false")
	}
}

func TestStepFailureCarriesCompensatable(t *testing.T) {
	err := StepFailure("reserve-inventory", "insufficient stock", nil, false)

	if err.Kind != KindStepFailure {
		t.Fatalf("Kind = %v, want KindStepFailure", err.Kind)
	}
	if err.Compensatable {
		t.Fatalf("Compensatable = true, want false")
	}
	if err.Error() != "[step_failure] reserve-inventory: insufficient stock" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestIsCancelledRecognisesContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if !IsCancelled(ctx.Err()) {
		t.Fatalf("IsCancelled(context.Canceled) = false")
	}
	if !IsCancelled(Wrap(KindCancelled, ctx.Err(), "op cancelled")) {
		t.Fatalf("IsCancelled(wrapped) = false")
	}
	if IsCancelled(errors.New("boom")) {
		t.Fatalf("IsCancelled(unrelated) = true")
	}
}

func TestIsCancelledRejectsDeadlineExceeded(t *testing.T) {
	if IsCancelled(context.DeadlineExceeded) {
		t.Fatalf("IsCancelled(context.DeadlineExceeded) = true, want false (that's a timeout, not a cancellation)")
	}
}

func TestKindOfUnrelatedError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("KindOf(plain error) ok = true, want false")
	}
}
