package transport

import "sync"

// Transport is a broadcast channel shared by every peer in a group. A posted
// payload reaches every other endpoint, never the sender itself.
type Transport interface {
	Post(payload []byte) error
	// OnReceive sets the single delivery callback, replacing any previous one.
	OnReceive(handler func(payload []byte))
	Close() error
}

// receiver holds the delivery callback shared by the implementations.
type receiver struct {
	mu      sync.RWMutex
	handler func([]byte)
}

func (r *receiver) OnReceive(handler func([]byte)) {
	r.mu.Lock()
	r.handler = handler
	r.mu.Unlock()
}

func (r *receiver) deliver(payload []byte) {
	r.mu.RLock()
	h := r.handler
	r.mu.RUnlock()
	if h != nil {
		h(payload)
	}
}
