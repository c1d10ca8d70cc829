// Package metrics defines the capability-set metrics abstraction used
// across the resilience pipeline, the bus, and the saga orchestrator, plus
// a no-op default and a Prometheus-backed implementation.
//
// Every sink exposes raw counter/histogram/gauge primitives plus typed
// convenience operations for http requests, circuit breaker state changes,
// retry attempts, saga executions, saga step executions, message
// operations, and health checks.
package metrics

// Sink is the full metrics capability set. A caller that wires nothing
// gets NoOp(), so the core always has somewhere to record events.
type Sink interface {
	IncCounter(name string, tags map[string]string)
	ObserveHistogram(name string, value float64, tags map[string]string)
	SetGauge(name string, value float64, tags map[string]string)

	RecordHTTPRequest(method, endpoint string, statusCode int, durationMs float64)
	RecordCircuitBreakerStateChange(name, fromState, toState string)
	RecordRetryAttempt(operation string, attemptNumber int, isSuccessful bool)
	RecordSagaExecution(sagaName, result string, durationMs float64, stepCount int)
	RecordSagaStepExecution(sagaName, stepName string, durationMs float64)
	RecordMessageOperation(operation, messageType string, durationMs float64, status string)
	RecordHealthCheck(durationMs float64)
}

// NoOp returns a Sink that discards every observation. It is the default
// used whenever a caller wires no metrics backend.
func NoOp() Sink {
	return noopSink{}
}

type noopSink struct{}

func (noopSink) IncCounter(string, map[string]string)                    {}
func (noopSink) ObserveHistogram(string, float64, map[string]string)     {}
func (noopSink) SetGauge(string, float64, map[string]string)             {}
func (noopSink) RecordHTTPRequest(string, string, int, float64)          {}
func (noopSink) RecordCircuitBreakerStateChange(string, string, string)  {}
func (noopSink) RecordRetryAttempt(string, int, bool)                    {}
func (noopSink) RecordSagaExecution(string, string, float64, int)        {}
func (noopSink) RecordSagaStepExecution(string, string, float64)         {}
func (noopSink) RecordMessageOperation(string, string, float64, string)  {}
func (noopSink) RecordHealthCheck(float64)                               {}
