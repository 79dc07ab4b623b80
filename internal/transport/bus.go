package transport

import (
	"errors"
	"log/slog"
	"sync"
)

const endpointQueueSize = 256

var ErrClosed = errors.New("transport: endpoint closed")

// Bus is an in-process set of named broadcast channels. Every endpoint joined
// to the same name sees the others' posts, delivered asynchronously in post
// order.
type Bus struct {
	mu       sync.Mutex
	channels map[string][]*Endpoint
}

func NewBus() *Bus {
	return &Bus{channels: make(map[string][]*Endpoint)}
}

// Join attaches a new endpoint to the named channel.
func (b *Bus) Join(name string) *Endpoint {
	ep := &Endpoint{
		bus:   b,
		name:  name,
		queue: make(chan []byte, endpointQueueSize),
		done:  make(chan struct{}),
	}
	b.mu.Lock()
	b.channels[name] = append(b.channels[name], ep)
	b.mu.Unlock()

	go ep.run()
	return ep
}

func (b *Bus) leave(ep *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	eps := b.channels[ep.name]
	for i, e := range eps {
		if e == ep {
			b.channels[ep.name] = append(eps[:i:i], eps[i+1:]...)
			break
		}
	}
	if len(b.channels[ep.name]) == 0 {
		delete(b.channels, ep.name)
	}
}

// Endpoint is one attachment to a Bus channel.
type Endpoint struct {
	receiver
	bus   *Bus
	name  string
	queue chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (e *Endpoint) Post(payload []byte) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	e.bus.mu.Lock()
	peers := append([]*Endpoint(nil), e.bus.channels[e.name]...)
	e.bus.mu.Unlock()

	for _, p := range peers {
		if p == e {
			continue
		}
		data := make([]byte, len(payload))
		copy(data, payload)
		p.enqueue(data)
	}
	return nil
}

func (e *Endpoint) enqueue(data []byte) {
	select {
	case <-e.done:
	case e.queue <- data:
	default:
		slog.Warn("Bus endpoint queue full, dropping payload", "channel", e.name)
	}
}

func (e *Endpoint) run() {
	for {
		select {
		case <-e.done:
			return
		case data := <-e.queue:
			e.deliver(data)
		}
	}
}

// Close detaches the endpoint. Payloads still queued are discarded.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.bus.leave(e)
		close(e.done)
	})
	return nil
}
