// Command orchestrator is an example wiring of the saga engine over the
// resilience pipeline, the message bus, and observability. It is not a
// deployable service: the HTTP doer and the payment/inventory contracts
// it talks to belong to the surrounding microservices.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridianhq/sagaflow/internal/config"
	"github.com/meridianhq/sagaflow/pkg/bus"
	"github.com/meridianhq/sagaflow/pkg/observability/metrics"
	"github.com/meridianhq/sagaflow/pkg/observability/tracing"
	"github.com/meridianhq/sagaflow/pkg/resilience"
	"github.com/meridianhq/sagaflow/pkg/resilience/breaker"
	"github.com/meridianhq/sagaflow/pkg/resilience/retry"
	"github.com/meridianhq/sagaflow/pkg/resilience/timeout"
	"github.com/meridianhq/sagaflow/pkg/saga"
	"github.com/meridianhq/sagaflow/pkg/transport"
)

type orderPayload struct {
	OrderID                string
	Amount                 int
	InventoryReservationID string
	PaymentID              string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	registry := prometheus.NewRegistry()
	sink := metrics.NewPrometheusSink(registry)

	tracer := tracing.NoOp()
	shutdownTracing := func(context.Context) error { return nil }
	if cfg.Tracing.ServiceName != "" {
		otelTracer, shutdown, err := tracing.NewOtel(cfg.Tracing.ToTracingConfig(os.Getenv("SAGAFLOW_TRACING_COLLECTOR_ENDPOINT")))
		if err != nil {
			log.Fatalf("init tracing: %v", err)
		}
		tracer, shutdownTracing = otelTracer, shutdown
	}
	defer shutdownTracing(context.Background())

	messageBus, err := bus.Connect(cfg.Bus.ToBusConfig(), sink, tracer)
	if err != nil {
		log.Fatalf("connect bus: %v", err)
	}
	defer messageBus.Close()

	metricsServer := &http.Server{Addr: ":9090", Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()

	circuit := breaker.New("inventory-service", cfg.CircuitBreaker.ToBreakerConfig(), sink)
	retryPolicy := retry.New(cfg.Retry.ToRetryConfig(), "reserve-inventory", nil, sink)
	timeoutPolicy := timeout.New(cfg.Timeout.Default)
	pipeline := resilience.NewPipeline(retryPolicy, circuit, timeoutPolicy, cfg.Timeout.Default)
	inventoryClient := transport.New(httpDoer, pipeline, sink, tracer)

	orchestrator := saga.NewOrchestrator(sink, tracer)
	def, err := buildOrderSaga(messageBus, inventoryClient)
	if err != nil {
		log.Fatalf("build saga definition: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outcome := saga.Run(ctx, orchestrator, def, orderPayload{OrderID: "ord-1", Amount: 100})
	log.Printf("saga outcome: status=%s reason=%s", outcome.Status, outcome.Reason)

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

// buildOrderSaga wires a 3-step order placement saga: reserve inventory
// over the resilient transport client, charge payment over a bus
// request/reply, then publish an order-confirmed event. Inventory
// reservation is the only step wrapped in its own circuit breaker; the
// payment and notification steps rely on the bus's own delivery
// guarantees instead.
func buildOrderSaga(messageBus *bus.Bus, inventoryClient *transport.Client) (*saga.Definition[orderPayload], error) {
	reserveInventory := saga.Step[orderPayload]{
		Name:  "reserve-inventory",
		Order: 1,
		Execute: func(ctx context.Context, p *orderPayload) saga.StepOutcome {
			resp, err := inventoryClient.Do(ctx, transport.Request{Method: "POST", URL: "http://inventory-service/reservations"})
			if err != nil {
				return saga.Failure("inventory reservation failed", err, true)
			}
			p.InventoryReservationID = string(resp.Body)
			return saga.Success()
		},
		Compensate: func(ctx context.Context, p *orderPayload) saga.StepOutcome {
			if p.InventoryReservationID == "" {
				return saga.Success()
			}
			if _, err := inventoryClient.Do(ctx, transport.Request{Method: "DELETE", URL: "http://inventory-service/reservations/" + p.InventoryReservationID}); err != nil {
				return saga.Failure("inventory release failed", err, true)
			}
			return saga.Success()
		},
	}

	chargePayment := saga.Step[orderPayload]{
		Name:  "charge-payment",
		Order: 2,
		Execute: func(ctx context.Context, p *orderPayload) saga.StepOutcome {
			env, err := messageBus.Request(ctx, "payment.charge.requested", map[string]any{"orderId": p.OrderID, "amount": p.Amount})
			if err != nil {
				return saga.Failure("payment charge failed", err, true)
			}
			var reply struct {
				PaymentID string `json:"paymentId"`
			}
			if err := json.Unmarshal(env.Payload, &reply); err != nil {
				return saga.Failure("payment reply malformed", err, false)
			}
			p.PaymentID = reply.PaymentID
			return saga.Success()
		},
		Compensate: func(ctx context.Context, p *orderPayload) saga.StepOutcome {
			if p.PaymentID == "" {
				return saga.Success()
			}
			if err := messageBus.Publish(ctx, "payment.refund.requested", map[string]any{"paymentId": p.PaymentID}); err != nil {
				return saga.Failure("payment refund publish failed", err, true)
			}
			return saga.Success()
		},
	}

	notifyOrderConfirmed := saga.Step[orderPayload]{
		Name:  "notify-order-confirmed",
		Order: 3,
		Execute: func(ctx context.Context, p *orderPayload) saga.StepOutcome {
			if err := messageBus.Publish(ctx, "order.confirmed", map[string]any{"orderId": p.OrderID}); err != nil {
				return saga.Failure("order confirmation publish failed", err, true)
			}
			return saga.Success()
		},
	}

	return saga.NewDefinition("place-order", reserveInventory, chargePayment, notifyOrderConfirmed)
}

// httpDoer is a placeholder transport.Doer. A real deployment plugs in an
// *http.Client here; this example keeps the saga wiring independent of
// any concrete HTTP stack.
func httpDoer(ctx context.Context, req transport.Request) (transport.Response, error) {
	return transport.Response{}, fmt.Errorf("httpDoer not wired: %s %s", req.Method, req.URL)
}
