package events

import (
	"sync"
)

// Handler receives a published signal. Handlers run synchronously on the
// publishing goroutine.
type Handler func(sig Signal, payload Payload)

// Bus dispatches signals to subscribers with per-class re-entrancy control:
// while a class is being dispatched, further publishes of that class queue
// instead of recursing. A single boolean for the whole bus would stall
// unrelated signal chains; a token per class only stops actual rebroadcast
// loops.
type Bus struct {
	mu          sync.Mutex
	subscribers map[Signal][]Handler
	dispatching map[Class]bool
	pending     map[Class][]queued
	delivered   map[Signal]bool
}

type queued struct {
	sig     Signal
	payload Payload
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Signal][]Handler),
		dispatching: make(map[Class]bool),
		pending:     make(map[Class][]queued),
		delivered:   make(map[Signal]bool),
	}
}

// Subscribe registers a handler for one signal
func (b *Bus) Subscribe(sig Signal, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sig] = append(b.subscribers[sig], h)
}

// Publish delivers a signal to its subscribers. If a signal of the same
// class is already mid-dispatch on this bus, the publish is queued and
// delivered once the current dispatch finishes. Each distinct signal fires
// at most once per cascade, so a handler republishing its own trigger
// cannot loop.
func (b *Bus) Publish(sig Signal, payload Payload) {
	class := ClassOf(sig)

	b.mu.Lock()
	if b.dispatching[class] {
		if !b.delivered[sig] {
			b.delivered[sig] = true
			b.pending[class] = append(b.pending[class], queued{sig: sig, payload: payload})
		}
		b.mu.Unlock()
		return
	}

	b.dispatching[class] = true
	topLevel := len(b.dispatchingClasses()) == 1
	handlers := append([]Handler(nil), b.subscribers[sig]...)
	b.delivered[sig] = true
	b.mu.Unlock()

	// A handler that panics must not leave the class token set, or every
	// later publish in this class queues forever. Release it on unwind and
	// let the panic continue to the caller.
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.dispatching[class] = false
			b.pending[class] = nil
			if topLevel && len(b.dispatchingClasses()) == 0 {
				b.delivered = make(map[Signal]bool)
			}
			b.mu.Unlock()
			panic(r)
		}
	}()

	for _, h := range handlers {
		h(sig, payload)
	}

	// Drain anything queued for this class while we were dispatching
	for {
		b.mu.Lock()
		queue := b.pending[class]
		b.pending[class] = nil
		if len(queue) == 0 {
			b.dispatching[class] = false
			if topLevel && len(b.dispatchingClasses()) == 0 {
				// Cascade over; allow every signal to fire again
				b.delivered = make(map[Signal]bool)
			}
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		for _, q := range queue {
			b.mu.Lock()
			handlers := append([]Handler(nil), b.subscribers[q.sig]...)
			b.mu.Unlock()
			for _, h := range handlers {
				h(q.sig, q.payload)
			}
		}
	}
}

func (b *Bus) dispatchingClasses() []Class {
	var active []Class
	for c, on := range b.dispatching {
		if on {
			active = append(active, c)
		}
	}
	return active
}
