// Package saga implements the orchestration engine: an ordered sequence
// of steps executed against a shared payload, with reverse-order
// compensation on failure or cancellation.
//
// A saga's payload is owned exclusively by its own execution; steps run
// strictly sequentially, so no locking is required here. Parallel fan-out
// across distinct sagas is the caller's concern, not this package's.
package saga

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/sagaflow/pkg/observability/metrics"
	"github.com/meridianhq/sagaflow/pkg/observability/tracing"
)

// Status is a saga instance's terminal state.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusCompensated
	StatusCompensationFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusCompensated:
		return "compensated"
	case StatusCompensationFailed:
		return "compensation_failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StepOutcome is what a step's Execute or Compensate function reports.
type StepOutcome struct {
	Failed        bool
	Reason        string
	Cause         error
	Compensatable bool // only meaningful when Failed
}

// Success reports that a step (or compensation) completed normally.
func Success() StepOutcome {
	return StepOutcome{}
}

// Failure reports that a step failed. compensatable controls whether the
// orchestrator attempts to compensate already-executed predecessors: a
// non-compensatable failure means the partial state cannot be unwound, so
// compensation is skipped entirely rather than run on an unrecoverable base.
func Failure(reason string, cause error, compensatable bool) StepOutcome {
	return StepOutcome{Failed: true, Reason: reason, Cause: cause, Compensatable: compensatable}
}

// StepFunc is the shape of both a step's forward action and its inverse.
// The payload is passed by reference: steps may record results consumed
// by later steps or by compensations of earlier steps.
type StepFunc[T any] func(ctx context.Context, payload *T) StepOutcome

// Step is one named unit of a SagaDefinition.
type Step[T any] struct {
	Name       string
	Order      int // strictly positive; ties are rejected at definition time
	Execute    StepFunc[T]
	Compensate StepFunc[T]
}

// Definition is an immutable, ordered sequence of steps, identified by a
// stable name.
type Definition[T any] struct {
	name  string
	steps []Step[T]
}

// NewDefinition sorts steps by ascending Order and rejects the definition
// if any order is non-positive or two steps share an order.
func NewDefinition[T any](name string, steps ...Step[T]) (*Definition[T], error) {
	sorted := append([]Step[T](nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for i, s := range sorted {
		if s.Order <= 0 {
			return nil, fmt.Errorf("saga: step %q has non-positive order %d", s.Name, s.Order)
		}
		if i > 0 && sorted[i].Order == sorted[i-1].Order {
			return nil, fmt.Errorf("saga: steps %q and %q share order %d", sorted[i-1].Name, s.Name, s.Order)
		}
	}

	return &Definition[T]{name: name, steps: sorted}, nil
}

// Name returns the definition's stable identifier.
func (d *Definition[T]) Name() string { return d.name }

// Outcome is the terminal result of one saga run.
type Outcome[T any] struct {
	SagaID        string
	Status        Status
	Payload       T
	ExecutedCount int
	Reason        string
	Cause         error
}

// Orchestrator runs saga definitions, emitting observability events at
// every significant boundary.
type Orchestrator struct {
	sink   metrics.Sink
	tracer tracing.Tracer
}

// NewOrchestrator builds an Orchestrator. A nil sink/tracer uses the
// respective no-op default.
func NewOrchestrator(sink metrics.Sink, tracer tracing.Tracer) *Orchestrator {
	if sink == nil {
		sink = metrics.NoOp()
	}
	if tracer == nil {
		tracer = tracing.NoOp()
	}
	return &Orchestrator{sink: sink, tracer: tracer}
}

// Run executes def against payload. Step i+1 starts only after step i
// completes. On any step failure, or on cancellation of ctx, already
// executed steps are compensated in reverse order before Run returns.
func Run[T any](ctx context.Context, o *Orchestrator, def *Definition[T], payload T) Outcome[T] {
	sagaID := uuid.NewString()
	ctx, span := o.tracer.StartActivity(ctx, "saga:"+def.name, tracing.SpanKindInternal)
	defer span.End()
	span.AddTag("saga.id", sagaID)
	span.AddTag("saga.name", def.name)
	span.AddEvent("saga-start", map[string]interface{}{"saga.id": sagaID, "step.count": len(def.steps)})
	start := time.Now()

	var executed []Step[T]

	for _, step := range def.steps {
		if ctx.Err() != nil {
			return finishCancelled(o, ctx, def, executed, payload, sagaID, start, span)
		}

		stepStart := time.Now()
		span.AddEvent("step-start", map[string]interface{}{"step": step.Name, "order": step.Order})

		outcome := step.Execute(ctx, &payload)

		o.sink.RecordSagaStepExecution(def.name, step.Name, msSince(stepStart))
		span.AddEvent("step-result", map[string]interface{}{"step": step.Name, "failed": outcome.Failed})

		if !outcome.Failed {
			executed = append(executed, step)
			continue
		}

		if ctx.Err() != nil {
			return finishCancelled(o, ctx, def, executed, payload, sagaID, start, span)
		}

		return finishFailed(o, def, executed, payload, sagaID, start, span, step, outcome)
	}

	o.sink.RecordSagaExecution(def.name, "success", msSince(start), len(executed))
	span.SetStatus(tracing.StatusOK, "")
	span.AddEvent("saga-end", map[string]interface{}{"saga.id": sagaID, "result": "success"})
	return Outcome[T]{SagaID: sagaID, Status: StatusSucceeded, Payload: payload, ExecutedCount: len(executed)}
}

func finishFailed[T any](
	o *Orchestrator,
	def *Definition[T],
	executed []Step[T],
	payload T,
	sagaID string,
	start time.Time,
	span tracing.Span,
	failedStep Step[T],
	outcome StepOutcome,
) Outcome[T] {
	reason := fmt.Sprintf("%s: %s", failedStep.Name, outcome.Reason)

	status := StatusCompensated
	if outcome.Compensatable {
		if compErr := runCompensations(o, context.Background(), def, executed, &payload, span); compErr {
			status = StatusCompensationFailed
		}
	} else {
		span.AddEvent("compensation-skipped", map[string]interface{}{"step": failedStep.Name, "reason": "non-compensatable failure"})
	}

	o.sink.RecordSagaExecution(def.name, "failure", msSince(start), len(executed))
	span.SetStatus(tracing.StatusError, reason)
	span.AddEvent("saga-end", map[string]interface{}{"saga.id": sagaID, "result": "failure"})

	return Outcome[T]{
		SagaID:        sagaID,
		Status:        status,
		Payload:       payload,
		ExecutedCount: len(executed),
		Reason:        reason,
		Cause:         outcome.Cause,
	}
}

func finishCancelled[T any](
	o *Orchestrator,
	ctx context.Context,
	def *Definition[T],
	executed []Step[T],
	payload T,
	sagaID string,
	start time.Time,
	span tracing.Span,
) Outcome[T] {
	status := StatusCancelled
	if compErr := runCompensations(o, context.Background(), def, executed, &payload, span); compErr {
		status = StatusCompensationFailed
	}

	o.sink.RecordSagaExecution(def.name, "cancelled", msSince(start), len(executed))
	span.SetStatus(tracing.StatusError, "cancelled")
	span.AddEvent("saga-end", map[string]interface{}{"saga.id": sagaID, "result": "cancelled"})

	return Outcome[T]{
		SagaID:        sagaID,
		Status:        status,
		Payload:       payload,
		ExecutedCount: len(executed),
		Reason:        "saga cancelled",
		Cause:         ctx.Err(),
	}
}

// runCompensations walks executed in reverse, calling each step's
// Compensate. It never returns early on a single failure: every
// compensation runs best-effort. It reports whether any compensation
// failed.
func runCompensations[T any](o *Orchestrator, ctx context.Context, def *Definition[T], executed []Step[T], payload *T, span tracing.Span) bool {
	anyFailed := false
	span.AddEvent("compensation-start", map[string]interface{}{"step.count": len(executed)})
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if step.Compensate == nil {
			continue
		}
		o.sink.IncCounter("saga_compensations_total", map[string]string{"saga_name": def.name, "step": step.Name})
		outcome := step.Compensate(ctx, payload)
		span.AddEvent("compensation-result", map[string]interface{}{"step": step.Name, "failed": outcome.Failed})
		if outcome.Failed {
			anyFailed = true
			o.sink.IncCounter("saga_compensation_failures_total", map[string]string{"saga_name": def.name, "step": step.Name})
		}
	}
	return anyFailed
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
