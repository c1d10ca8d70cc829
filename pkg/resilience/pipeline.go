// Package resilience composes the retry, circuit breaker, and timeout
// policies into the single pipeline the rest of the module calls through.
//
// Composition order, outside to inside, is Retry -> CircuitBreaker ->
// Timeout: retries must not bypass an open breaker, and the timeout
// bounds each individual attempt rather than the whole retry loop.
package resilience

import (
	"context"
	"time"

	"github.com/meridianhq/sagaflow/pkg/resilience/breaker"
	"github.com/meridianhq/sagaflow/pkg/resilience/retry"
	"github.com/meridianhq/sagaflow/pkg/resilience/timeout"
)

// Pipeline wraps a single remote operation in retry, circuit breaking, and
// per-attempt timeout.
type Pipeline struct {
	retryPolicy   *retry.Policy
	circuit       *breaker.Breaker
	timeoutPolicy *timeout.Policy
	perAttempt    time.Duration
}

// NewPipeline assembles a Pipeline from its three policies. Any of circuit
// or timeoutPolicy may be nil to skip that stage (e.g. a caller that only
// wants retry+timeout with no breaker).
func NewPipeline(retryPolicy *retry.Policy, circuit *breaker.Breaker, timeoutPolicy *timeout.Policy, perAttemptTimeout time.Duration) *Pipeline {
	return &Pipeline{
		retryPolicy:   retryPolicy,
		circuit:       circuit,
		timeoutPolicy: timeoutPolicy,
		perAttempt:    perAttemptTimeout,
	}
}

// Execute runs op through the composed pipeline.
func (p *Pipeline) Execute(ctx context.Context, op func(context.Context) error) error {
	attempt := op
	if p.timeoutPolicy != nil {
		inner := attempt
		attempt = func(ctx context.Context) error {
			return p.timeoutPolicy.Execute(ctx, p.perAttempt, inner)
		}
	}
	if p.circuit != nil {
		inner := attempt
		attempt = func(ctx context.Context) error {
			return p.circuit.Execute(ctx, inner)
		}
	}
	if p.retryPolicy != nil {
		return p.retryPolicy.Execute(ctx, attempt)
	}
	return attempt(ctx)
}

// Do is the typed counterpart to Pipeline.Execute.
func Do[T any](ctx context.Context, p *Pipeline, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
