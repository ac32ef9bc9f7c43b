// Package events provides an event bus implementation using Go channels.
package events

import (
	"context"
	"sync"

	"github.com/blackms/gradflow/internal/shared"
)

// Handler is a function that handles events.
type Handler func(event shared.Event)

type subscription struct {
	id int
	ch chan shared.Event
}

// EventBus provides a publish-subscribe event system using Go channels.
// Sends are non-blocking: a full subscriber channel drops the event rather
// than stalling the training loop.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[shared.EventType][]subscription
	handlers    map[shared.EventType][]Handler
	nextID      int
	bufferSize  int
	closed      bool
}

// Option configures the EventBus.
type Option func(*EventBus)

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) Option {
	return func(eb *EventBus) {
		eb.bufferSize = size
	}
}

// New creates a new EventBus.
func New(opts ...Option) *EventBus {
	eb := &EventBus{
		subscribers: make(map[shared.EventType][]subscription),
		handlers:    make(map[shared.EventType][]Handler),
		bufferSize:  100,
	}

	for _, opt := range opts {
		opt(eb)
	}

	return eb
}

// Subscribe creates a channel to receive events of the given type.
func (eb *EventBus) Subscribe(eventType shared.EventType) <-chan shared.Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	sub := subscription{id: eb.nextID, ch: make(chan shared.Event, eb.bufferSize)}
	eb.subscribers[eventType] = append(eb.subscribers[eventType], sub)
	return sub.ch
}

// SubscribeAll creates a channel to receive all events.
func (eb *EventBus) SubscribeAll() <-chan shared.Event {
	return eb.Subscribe("*")
}

// Unsubscribe removes a subscription channel and closes it.
func (eb *EventBus) Unsubscribe(eventType shared.EventType, ch <-chan shared.Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, sub := range subs {
		if sub.ch == ch {
			eb.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// On registers a handler for events of the given type.
func (eb *EventBus) On(eventType shared.EventType, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// Emit publishes an event to all subscribers and handlers.
func (eb *EventBus) Emit(event shared.Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = shared.Now()
	}

	for _, sub := range eb.subscribers[event.Type] {
		select {
		case sub.ch <- event:
		default:
			// Channel full, skip
		}
	}
	for _, sub := range eb.subscribers["*"] {
		select {
		case sub.ch <- event:
		default:
		}
	}

	for _, handler := range eb.handlers[event.Type] {
		handler(event)
	}
	for _, handler := range eb.handlers["*"] {
		handler(event)
	}
}

// EmitWithContext publishes an event unless the context is already done.
func (eb *EventBus) EmitWithContext(ctx context.Context, event shared.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		eb.Emit(event)
		return nil
	}
}

// Close closes all subscriber channels and stops the event bus.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, subs := range eb.subscribers {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	eb.subscribers = make(map[shared.EventType][]subscription)
	eb.handlers = make(map[shared.EventType][]Handler)
}
