package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metric and tag names are fixed by the external configuration contract
// to keep existing dashboards working; see the fixed set in the external
// interfaces surface.
const (
	metricHTTPRequestsTotal             = "http_requests_total"
	metricHTTPRequestDurationMs         = "http_request_duration_ms"
	metricCircuitBreakerStateChanges    = "circuit_breaker_state_changes_total"
	metricRetryAttemptsTotal            = "retry_attempts_total"
	metricSagaExecutionsTotal           = "saga_executions_total"
	metricSagaExecutionDurationMs       = "saga_execution_duration_ms"
	metricSagaStepExecutionDurationMs   = "saga_step_execution_duration_ms"
	metricMessageOperationsTotal        = "message_operations_total"
	metricMessageOperationDurationMs    = "message_operation_duration_ms"
	metricHealthCheckDurationMs         = "health_check_duration_ms"
	metricMemoryUsageBytes              = "memory_usage_bytes"
	metricActiveConnections             = "active_connections"
)

// PrometheusSink is a Sink backed by client_golang. Its metrics are
// registered via promauto.With against the registry passed to
// NewPrometheusSink, not against the global default registry.
type PrometheusSink struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	breakerStateChanges   *prometheus.CounterVec
	retryAttemptsTotal    *prometheus.CounterVec
	sagaExecutionsTotal   *prometheus.CounterVec
	sagaExecutionDuration  *prometheus.HistogramVec
	sagaStepDuration       *prometheus.HistogramVec
	messageOpsTotal       *prometheus.CounterVec
	messageOpDuration      *prometheus.HistogramVec
	healthCheckDuration    prometheus.Histogram
	memoryUsageBytes      prometheus.Gauge
	activeConnections     prometheus.Gauge

	genericCounters   map[string]*prometheus.CounterVec
	genericHistograms map[string]*prometheus.HistogramVec
	genericGauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusSink registers every fixed metric against reg and returns a
// Sink. Pass prometheus.NewRegistry() for test isolation, or
// prometheus.DefaultRegisterer's registry in production.
func NewPrometheusSink(reg *prometheus.Registry) *PrometheusSink {
	factory := promauto.With(reg)

	return &PrometheusSink{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricHTTPRequestsTotal,
			Help: "Total HTTP requests made by the resilient transport client.",
		}, []string{"method", "endpoint", "status_code"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricHTTPRequestDurationMs,
			Help:    "HTTP request duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"method", "endpoint"}),

		breakerStateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricCircuitBreakerStateChanges,
			Help: "Circuit breaker state transitions.",
		}, []string{"circuit_breaker_name", "from_state", "to_state"}),

		retryAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricRetryAttemptsTotal,
			Help: "Retry attempts made per operation.",
		}, []string{"operation", "attempt_number", "is_successful"}),

		sagaExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricSagaExecutionsTotal,
			Help: "Total saga executions by terminal result.",
		}, []string{"saga_name", "result"}),

		sagaExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricSagaExecutionDurationMs,
			Help:    "Saga execution duration in milliseconds.",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 30000},
		}, []string{"saga_name", "result", "step_count"}),

		sagaStepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricSagaStepExecutionDurationMs,
			Help:    "Individual saga step execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"saga_name"}),

		messageOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricMessageOperationsTotal,
			Help: "Message bus operations (publish/subscribe/request) by result.",
		}, []string{"operation", "message_type", "status"}),

		messageOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricMessageOperationDurationMs,
			Help:    "Message bus operation duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"operation", "message_type"}),

		healthCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    metricHealthCheckDurationMs,
			Help:    "Health check duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500},
		}),

		memoryUsageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricMemoryUsageBytes,
			Help: "Process resident memory usage in bytes.",
		}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricActiveConnections,
			Help: "Active bus connections held by this process.",
		}),

		genericCounters:   make(map[string]*prometheus.CounterVec),
		genericHistograms: make(map[string]*prometheus.HistogramVec),
		genericGauges:     make(map[string]*prometheus.GaugeVec),
	}
}

func (p *PrometheusSink) IncCounter(name string, tags map[string]string) {
	p.counterFor(name, tags).With(tags).Inc()
}

func (p *PrometheusSink) ObserveHistogram(name string, value float64, tags map[string]string) {
	p.histogramFor(name, tags).With(tags).Observe(value)
}

func (p *PrometheusSink) SetGauge(name string, value float64, tags map[string]string) {
	p.gaugeFor(name, tags).With(tags).Set(value)
}

func (p *PrometheusSink) RecordHTTPRequest(method, endpoint string, statusCode int, durationMs float64) {
	p.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	p.httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationMs)
}

func (p *PrometheusSink) RecordCircuitBreakerStateChange(name, fromState, toState string) {
	p.breakerStateChanges.WithLabelValues(name, fromState, toState).Inc()
}

func (p *PrometheusSink) RecordRetryAttempt(operation string, attemptNumber int, isSuccessful bool) {
	p.retryAttemptsTotal.WithLabelValues(operation, strconv.Itoa(attemptNumber), strconv.FormatBool(isSuccessful)).Inc()
}

func (p *PrometheusSink) RecordSagaExecution(sagaName, result string, durationMs float64, stepCount int) {
	p.sagaExecutionsTotal.WithLabelValues(sagaName, result).Inc()
	p.sagaExecutionDuration.WithLabelValues(sagaName, result, strconv.Itoa(stepCount)).Observe(durationMs)
}

func (p *PrometheusSink) RecordSagaStepExecution(sagaName, stepName string, durationMs float64) {
	p.sagaStepDuration.WithLabelValues(sagaName).Observe(durationMs)
	_ = stepName // step identity stays on the trace span, not the metric label, to avoid high cardinality
}

func (p *PrometheusSink) RecordMessageOperation(operation, messageType string, durationMs float64, status string) {
	p.messageOpsTotal.WithLabelValues(operation, messageType, status).Inc()
	p.messageOpDuration.WithLabelValues(operation, messageType).Observe(durationMs)
}

func (p *PrometheusSink) RecordHealthCheck(durationMs float64) {
	p.healthCheckDuration.Observe(durationMs)
}

func (p *PrometheusSink) counterFor(name string, tags map[string]string) *prometheus.CounterVec {
	if c, ok := p.genericCounters[name]; ok {
		return c
	}
	c := promauto.With(p.registry).NewCounterVec(prometheus.CounterOpts{Name: name}, labelNames(tags))
	p.genericCounters[name] = c
	return c
}

func (p *PrometheusSink) histogramFor(name string, tags map[string]string) *prometheus.HistogramVec {
	if h, ok := p.genericHistograms[name]; ok {
		return h
	}
	h := promauto.With(p.registry).NewHistogramVec(prometheus.HistogramOpts{Name: name}, labelNames(tags))
	p.genericHistograms[name] = h
	return h
}

func (p *PrometheusSink) gaugeFor(name string, tags map[string]string) *prometheus.GaugeVec {
	if g, ok := p.genericGauges[name]; ok {
		return g
	}
	g := promauto.With(p.registry).NewGaugeVec(prometheus.GaugeOpts{Name: name}, labelNames(tags))
	p.genericGauges[name] = g
	return g
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	return names
}
