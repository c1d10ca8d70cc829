// Package retry implements exponential-backoff-with-jitter retry over an
// arbitrary operation, classifying failures as transient or not before
// deciding whether to retry.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/meridianhq/sagaflow/pkg/observability/metrics"
	"github.com/meridianhq/sagaflow/pkg/sagaerrors"
)

// Config controls attempt count and backoff shape. Field names mirror the
// `retry.*` configuration surface.
type Config struct {
	MaxAttempts           int
	BaseDelay             time.Duration
	UseExponentialBackoff bool
	BackoffMultiplier     float64
	UseJitter             bool
	MaxJitter             time.Duration
}

// DefaultConfig returns the documented defaults: 3 attempts, 1s base delay,
// exponential backoff with multiplier 2.0, up to 100ms of additive jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:           3,
		BaseDelay:             time.Second,
		UseExponentialBackoff: true,
		BackoffMultiplier:     2.0,
		UseJitter:             true,
		MaxJitter:             100 * time.Millisecond,
	}
}

// Classifier decides whether a failure is worth retrying. The default
// classifier retries anything that is neither a cancellation nor a
// KindPermanent failure.
type Classifier func(err error) bool

// DefaultClassifier retries any failure that is neither a cancellation nor
// a KindPermanent failure.
func DefaultClassifier(err error) bool {
	return !sagaerrors.IsCancelled(err) && !sagaerrors.Is(err, sagaerrors.KindPermanent)
}

// Policy executes an operation under Config, emitting a retry-attempt
// observability event for every attempt.
type Policy struct {
	cfg        Config
	classifier Classifier
	sink       metrics.Sink
	operation  string
}

// New creates a Policy. A nil classifier uses DefaultClassifier; a nil sink
// uses metrics.NoOp().
func New(cfg Config, operation string, classifier Classifier, sink metrics.Sink) *Policy {
	if classifier == nil {
		classifier = DefaultClassifier
	}
	if sink == nil {
		sink = metrics.NoOp()
	}
	return &Policy{cfg: cfg, classifier: classifier, sink: sink, operation: operation}
}

// Execute runs op, retrying on transient failure per the policy's Config.
// Attempt 1 runs immediately; cancellation of ctx is never retried and is
// surfaced as a KindCancelled error. A non-transient failure or exhausted
// attempts surfaces the most recent underlying failure unchanged.
func (p *Policy) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return sagaerrors.Wrap(sagaerrors.KindCancelled, err, "retry cancelled before attempt")
		}

		err := op(ctx)
		if err == nil {
			p.sink.RecordRetryAttempt(p.operation, attempt, true)
			return nil
		}

		p.sink.RecordRetryAttempt(p.operation, attempt, false)
		lastErr = err

		if sagaerrors.IsCancelled(err) {
			return err
		}
		if attempt >= p.cfg.MaxAttempts || !p.classifier(err) {
			return err
		}

		wait := p.delayFor(attempt)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return sagaerrors.Wrap(sagaerrors.KindCancelled, ctx.Err(), "retry cancelled during backoff")
		}
	}

	return lastErr
}

// delayFor computes delay_n = baseDelay * multiplier^(n-1) + U(0,jitterMax)
// when exponential, or baseDelay + U(0,jitterMax) otherwise. Jitter is
// additive, uniform, and independently sampled per attempt.
func (p *Policy) delayFor(attempt int) time.Duration {
	var d time.Duration
	if p.cfg.UseExponentialBackoff {
		d = time.Duration(float64(p.cfg.BaseDelay) * math.Pow(p.cfg.BackoffMultiplier, float64(attempt-1)))
	} else {
		d = p.cfg.BaseDelay
	}

	if p.cfg.UseJitter && p.cfg.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.cfg.MaxJitter) + 1))
	}

	return d
}

// Do runs op through p, returning its result on success. It is the typed
// counterpart to Policy.Execute for operations that produce a value.
func Do[T any](ctx context.Context, p *Policy, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
