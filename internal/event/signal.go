// Package event provides typed callback registries. Subscribing returns an owned
// handle; closing the handle unregisters the listener.
package event

import (
	"sync"
)

// Handler receives a value emitted on a Signal.
type Handler[T any] func(T)

// Signal is a registry of listeners for values of type T.
// Listeners are invoked synchronously on the emitting goroutine, after the
// registry lock has been released, in subscription order.
type Signal[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listener[T]
}

type listener[T any] struct {
	id      uint64
	handler Handler[T]
}

// NewSignal creates an empty Signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{
		mu:        sync.Mutex{},
		nextID:    0,
		listeners: nil,
	}
}

// Subscribe registers a handler and returns the subscription that owns it.
func (s *Signal[T]) Subscribe(handler Handler[T]) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener[T]{id: id, handler: handler})

	return &Subscription{
		once: sync.Once{},
		cancel: func() {
			s.remove(id)
		},
	}
}

// Emit delivers value to every registered listener.
func (s *Signal[T]) Emit(value T) {
	s.mu.Lock()
	snapshot := make([]listener[T], len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, l := range snapshot {
		l.handler(value)
	}
}

// Len returns the number of registered listeners.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.listeners)
}

func (s *Signal[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)

			return
		}
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Close unregisters the listener. Calling Close more than once is a no-op.
func (s *Subscription) Close() {
	if s == nil {
		return
	}

	s.once.Do(s.cancel)
}

// Group closes several subscriptions together.
type Group []*Subscription

// Close closes every subscription in the group.
func (g Group) Close() {
	for _, s := range g {
		s.Close()
	}
}
