package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPendingRegistryDeliversToRegisteredWaiter(t *testing.T) {
	r := newPendingRegistry()
	waiter := r.register("corr-1")

	ok := r.deliver(Envelope{CorrelationID: "corr-1", Type: "order.created.reply"})
	if !ok {
		t.Fatalf("deliver() = false, want true for a registered correlation id")
	}

	select {
	case env := <-waiter:
		if env.Type != "order.created.reply" {
			t.Fatalf("Type = %q, want order.created.reply", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never received the reply")
	}
}

func TestPendingRegistryDropsUnmatchedReplies(t *testing.T) {
	r := newPendingRegistry()
	if r.deliver(Envelope{CorrelationID: "unknown"}) {
		t.Fatal("deliver() = true for a correlation id with no waiter")
	}
}

func TestPendingRegistryRemoveStopsFutureDelivery(t *testing.T) {
	r := newPendingRegistry()
	r.register("corr-2")
	r.remove("corr-2")

	if r.deliver(Envelope{CorrelationID: "corr-2"}) {
		t.Fatal("deliver() = true after remove(), want false")
	}
}

// TestPendingRegistryConcurrentRequestsPreserveCorrelation drives many
// concurrent register/deliver pairs with distinct payloads through a
// single registry and asserts every reply reaches the waiter keyed by
// its own correlation id, never another's.
func TestPendingRegistryConcurrentRequestsPreserveCorrelation(t *testing.T) {
	const n = 1000
	r := newPendingRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			corrID := fmt.Sprintf("corr-%d", i)
			waiter := r.register(corrID)
			defer r.remove(corrID)

			payload := fmt.Sprintf(`{"n":%d}`, i)
			go func() {
				r.deliver(Envelope{CorrelationID: corrID, Type: "reply", Payload: []byte(payload)})
			}()

			select {
			case env := <-waiter:
				if env.CorrelationID != corrID {
					errs <- fmt.Errorf("waiter %s received reply for %s", corrID, env.CorrelationID)
					return
				}
				if string(env.Payload) != payload {
					errs <- fmt.Errorf("waiter %s received payload %s, want %s", corrID, env.Payload, payload)
				}
			case <-time.After(5 * time.Second):
				errs <- fmt.Errorf("waiter %s never received its reply", corrID)
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPendingRegistryFailAllClosesEveryWaiter(t *testing.T) {
	r := newPendingRegistry()
	w1 := r.register("corr-3")
	w2 := r.register("corr-4")

	r.failAll()

	for _, w := range []chan Envelope{w1, w2} {
		select {
		case _, ok := <-w:
			if ok {
				t.Fatal("expected channel to be closed, got a value")
			}
		case <-time.After(time.Second):
			t.Fatal("waiter was not closed by failAll")
		}
	}
}
