package bus

import (
	"encoding/json"
	"testing"
)

func TestSubscriberQueueNameIsScopedPerService(t *testing.T) {
	got := subscriberQueueName("billing-service", "order.created")
	want := "billing-service.order.created"
	if got != want {
		t.Fatalf("subscriberQueueName() = %q, want %q", got, want)
	}
}

func TestMustMarshalRoundTripsAStruct(t *testing.T) {
	type orderCreated struct {
		OrderID string `json:"orderId"`
	}
	raw := mustMarshal(orderCreated{OrderID: "ord-1"})

	var decoded orderCreated
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.OrderID != "ord-1" {
		t.Fatalf("OrderID = %q, want ord-1", decoded.OrderID)
	}
}

func TestMustMarshalPassesThroughRawMessageUnchanged(t *testing.T) {
	raw := json.RawMessage(`{"already":"json"}`)
	got := mustMarshal(raw)
	if string(got) != string(raw) {
		t.Fatalf("mustMarshal() = %s, want passthrough of %s", got, raw)
	}
}

func TestEnvelopeRoundTripsThroughJSON(t *testing.T) {
	env := Envelope{
		ID:            "msg-1",
		Type:          "order.created",
		CorrelationID: "corr-1",
		ReplyTo:       "reply-queue",
		Payload:       json.RawMessage(`{"orderId":"ord-1"}`),
	}

	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ID != env.ID || decoded.Type != env.Type || decoded.CorrelationID != env.CorrelationID {
		t.Fatalf("decoded = %+v, want %+v", decoded, env)
	}
}
