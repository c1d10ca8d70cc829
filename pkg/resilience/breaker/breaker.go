// Package breaker implements the circuit breaker pattern: Closed, Open,
// and HalfOpen states governed by call outcomes counted in a sampling
// window. The window is fixed, not sliding: while Closed, the counts are
// reset each time SamplingWindow elapses, so outcomes from the previous
// window do not carry into the next one.
//
// Unlike a count-over-seconds formula, the trip condition here is a direct
// failure ratio in (0,1] evaluated once at least a minimum number of calls
// have landed inside the sampling window.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/meridianhq/sagaflow/pkg/observability/metrics"
	"github.com/meridianhq/sagaflow/pkg/sagaerrors"
)

// State is one of Closed, Open, HalfOpen.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config governs trip and recovery behavior. Field names mirror the
// `circuitBreaker.*` configuration surface.
type Config struct {
	// FailureRatio is the threshold in (0,1] at or above which the breaker
	// trips.
	FailureRatio float64
	// SamplingWindow is the duration over which failures are counted.
	SamplingWindow time.Duration
	// MinimumThroughput is the number of calls that must land inside the
	// sampling window before the failure ratio is evaluated at all.
	MinimumThroughput int
	// BreakDuration is how long the breaker stays Open before admitting
	// a HalfOpen probe.
	BreakDuration time.Duration
}

// DefaultConfig returns a reasonable standalone default: a 50% failure
// ratio over a 10s sampling window with at least 3 calls observed, and a
// 1 minute open timeout before a recovery probe is admitted. Callers
// loading the `circuitBreaker.*` configuration surface should derive
// FailureRatio from failureThreshold/minimumThroughput instead of using
// this default verbatim; see internal/config.
func DefaultConfig() Config {
	return Config{
		FailureRatio:      0.5,
		SamplingWindow:    10 * time.Second,
		MinimumThroughput: 3,
		BreakDuration:     time.Minute,
	}
}

// Counts is the sampling-window statistics snapshot for one generation.
type Counts struct {
	Requests       uint32
	TotalSuccesses uint32
	TotalFailures  uint32
}

// FailureRate returns TotalFailures/Requests, or 0 when no requests have
// landed yet.
func (c *Counts) FailureRate() float64 {
	if c.Requests == 0 {
		return 0
	}
	return float64(c.TotalFailures) / float64(c.Requests)
}

func (c *Counts) reset() {
	*c = Counts{}
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
}

func (c *Counts) onFailure() {
	c.TotalFailures++
}

// halfOpenProbeLimit is fixed at 1: exactly one probe is admitted per
// recovery cycle, per the testable property that a HalfOpen breaker
// admits a single probe and decides Closed/Open from its outcome alone.
const halfOpenProbeLimit = 1

// Breaker is a single named circuit breaker instance.
type Breaker struct {
	name string
	cfg  Config
	sink metrics.Sink

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

// New creates a Breaker. A nil sink uses metrics.NoOp().
func New(name string, cfg Config, sink metrics.Sink) *Breaker {
	if sink == nil {
		sink = metrics.NoOp()
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		sink:   sink,
		state:  StateClosed,
		expiry: time.Now().Add(cfg.SamplingWindow),
	}
}

// Execute runs req if the breaker admits the call, returning a
// KindCircuitOpen failure without invoking req when it does not.
func (b *Breaker) Execute(ctx context.Context, req func(context.Context) error) error {
	generation, err := b.beforeRequest()
	if err != nil {
		return err
	}

	err = req(ctx)

	b.afterRequest(generation, err == nil)
	return err
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)

	if state == StateOpen {
		return generation, sagaerrors.New(sagaerrors.KindCircuitOpen, b.name+": circuit open")
	}
	if state == StateHalfOpen && b.counts.Requests >= halfOpenProbeLimit {
		return generation, sagaerrors.New(sagaerrors.KindCircuitOpen, b.name+": half-open probe already in flight")
	}

	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)
	if generation != before {
		return
	}

	if success {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	b.counts.onSuccess()
	if state == StateHalfOpen {
		b.setState(StateClosed, now)
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	b.counts.onFailure()

	switch state {
	case StateClosed:
		if int(b.counts.Requests) >= b.cfg.MinimumThroughput && b.counts.FailureRate() >= b.cfg.FailureRatio {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

// currentState resolves lazily-expired transitions (Closed sampling
// window elapsed, Open recovery delay elapsed) before returning the live
// state and generation. This is what makes State() report the truth
// instead of a stale cached value.
func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.counts.reset()
			b.expiry = now.Add(b.cfg.SamplingWindow)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.generation++
	b.counts.reset()

	switch state {
	case StateClosed:
		b.expiry = now.Add(b.cfg.SamplingWindow)
	case StateOpen:
		b.expiry = now.Add(b.cfg.BreakDuration)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	b.sink.RecordCircuitBreakerStateChange(b.name, prev.String(), state.String())
}

// State reports the breaker's current state, resolving any pending
// lazy transition first.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(time.Now())
	return state
}

// Counts returns a snapshot of the current generation's statistics.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}
