package breaker

import "github.com/meridianhq/sagaflow/pkg/observability/metrics"

// fakeSink records circuit-breaker state transitions in call order for
// assertions; every other observation is discarded.
type fakeSink struct {
	metrics.Sink
	transitions *[]string
}

func (f *fakeSink) RecordCircuitBreakerStateChange(name, from, to string) {
	*f.transitions = append(*f.transitions, from+"->"+to)
}
