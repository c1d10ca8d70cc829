// Package timeout bounds an operation to a deadline derived from the
// earlier of a configured timeout and the caller's context cancellation.
package timeout

import (
	"context"
	"errors"
	"time"

	"github.com/meridianhq/sagaflow/pkg/sagaerrors"
)

// Policy applies a default timeout to operations that don't specify one.
type Policy struct {
	defaultTimeout time.Duration
}

// New creates a Policy with the given default, used whenever Execute is
// called with timeout <= 0.
func New(defaultTimeout time.Duration) *Policy {
	return &Policy{defaultTimeout: defaultTimeout}
}

// Execute runs op under a context that cancels at the earlier of
// now+timeout (or now+p.defaultTimeout if timeout <= 0) and ctx's own
// cancellation. On expiry, op's context is cancelled and a KindTimeout
// failure is returned; if ctx was cancelled by the caller rather than
// timing out, a KindCancelled failure is returned instead. op's resources
// are released via the derived context regardless of which path wins.
func (p *Policy) Execute(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return sagaerrors.Wrap(sagaerrors.KindCancelled, ctx.Err(), "operation cancelled")
		}
		return sagaerrors.Wrap(sagaerrors.KindTimeout, ctx.Err(), "operation exceeded timeout")
	}
}

// Do is the typed counterpart to Policy.Execute for operations that
// produce a value.
func Do[T any](ctx context.Context, p *Policy, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, timeout, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
