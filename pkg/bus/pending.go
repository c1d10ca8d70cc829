package bus

import "sync"

// pendingRegistry tracks in-flight request/reply correlations. One
// registry is shared by a Bus's single reply queue consumer; every
// Request call registers an entry before publishing and removes it
// once it completes, times out, or its context is cancelled.
type pendingRegistry struct {
	mu      sync.Mutex
	waiters map[string]chan Envelope
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{waiters: make(map[string]chan Envelope)}
}

// register creates and returns a completion channel for correlationID.
// The caller must call remove when it is done waiting, whether it
// received a reply or not.
func (r *pendingRegistry) register(correlationID string) chan Envelope {
	ch := make(chan Envelope, 1)
	r.mu.Lock()
	r.waiters[correlationID] = ch
	r.mu.Unlock()
	return ch
}

// remove deletes the entry for correlationID, if any.
func (r *pendingRegistry) remove(correlationID string) {
	r.mu.Lock()
	delete(r.waiters, correlationID)
	r.mu.Unlock()
}

// deliver routes env to its waiter, if one is still registered.
// Replies with no matching waiter (already timed out, or a stray
// duplicate) are dropped.
func (r *pendingRegistry) deliver(env Envelope) bool {
	r.mu.Lock()
	ch, ok := r.waiters[env.CorrelationID]
	if ok {
		delete(r.waiters, env.CorrelationID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	ch <- env
	return true
}

// failAll closes every pending waiter's channel, used when the underlying
// connection drops so Request callers don't hang forever waiting for a
// reply queue that no longer exists; Request reports a closed waiter as a
// KindTransient "connection lost" failure.
func (r *pendingRegistry) failAll() {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = make(map[string]chan Envelope)
	r.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}
