// Package transport is a resilient façade over an HTTP-like
// request/response primitive. Each call runs through the timeout and
// retry pipeline; responses with status >= 400 and transport errors
// surface as classified failures visible to retry classification.
//
// Concrete routes, request construction, and payload (de)serialization
// belong to the collaborator services; this package only applies
// resilience and observability around a caller-supplied Doer.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianhq/sagaflow/pkg/observability/metrics"
	"github.com/meridianhq/sagaflow/pkg/observability/tracing"
	"github.com/meridianhq/sagaflow/pkg/resilience"
	"github.com/meridianhq/sagaflow/pkg/sagaerrors"
)

// Request is the transport-agnostic shape of an outbound call. Headers
// and Body are opaque to this package.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the transport-agnostic shape of an inbound reply.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Doer performs one physical call. Implementations typically wrap an
// *http.Client; this package never constructs one itself.
type Doer func(ctx context.Context, req Request) (Response, error)

// Client wraps a Doer with the resilience pipeline and observability.
type Client struct {
	doer     Doer
	pipeline *resilience.Pipeline
	sink     metrics.Sink
	tracer   tracing.Tracer
}

// New creates a Client. A nil sink uses metrics.NoOp(); a nil tracer uses
// tracing.NoOp().
func New(doer Doer, pipeline *resilience.Pipeline, sink metrics.Sink, tracer tracing.Tracer) *Client {
	if sink == nil {
		sink = metrics.NoOp()
	}
	if tracer == nil {
		tracer = tracing.NoOp()
	}
	return &Client{doer: doer, pipeline: pipeline, sink: sink, tracer: tracer}
}

// Do executes req through the resilience pipeline. Any response with
// StatusCode >= 400 is classified as a failure: 5xx as Transient
// (retryable), 4xx as Permanent (not retried).
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	ctx, span := c.tracer.StartActivity(ctx, req.Method+" "+req.URL, tracing.SpanKindClient)
	defer span.End()
	span.AddTag("http.method", req.Method)
	span.AddTag("http.url", req.URL)

	start := time.Now()
	resp, err := resilience.Do(ctx, c.pipeline, func(ctx context.Context) (Response, error) {
		r, callErr := c.doer(ctx, req)
		if callErr != nil {
			if sagaerrors.IsCancelled(callErr) {
				return r, sagaerrors.Wrap(sagaerrors.KindCancelled, callErr, "transport call cancelled")
			}
			return r, sagaerrors.Wrap(sagaerrors.KindTransient, callErr, "transport call failed")
		}
		if r.StatusCode >= 500 {
			return r, sagaerrors.New(sagaerrors.KindTransient, fmt.Sprintf("http %d", r.StatusCode))
		}
		if r.StatusCode >= 400 {
			return r, sagaerrors.New(sagaerrors.KindPermanent, fmt.Sprintf("http %d", r.StatusCode))
		}
		return r, nil
	})
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	c.sink.RecordHTTPRequest(req.Method, req.URL, resp.StatusCode, durationMs)
	if err != nil {
		span.SetStatus(tracing.StatusError, err.Error())
	} else {
		span.SetStatus(tracing.StatusOK, "")
	}

	return resp, err
}
