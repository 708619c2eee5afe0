// Package provider holds building blocks shared by the backend provider
// implementations.
package provider

import "sync"

// Listeners is an ordered callback set keyed by opaque subscription ids.
// Each Add returns an unsubscribe closure that removes exactly the added
// callback and is a no-op when called again.
type Listeners[T any] struct {
	mu    sync.Mutex
	next  int
	order []int
	cbs   map[int]func(T)
}

// NewListeners creates an empty set.
func NewListeners[T any]() *Listeners[T] {
	return &Listeners[T]{cbs: make(map[int]func(T))}
}

// Add registers a callback and returns its idempotent unsubscribe.
func (l *Listeners[T]) Add(cb func(T)) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.order = append(l.order, id)
	l.cbs[id] = cb
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.cbs, id)
			for i, v := range l.order {
				if v == id {
					l.order = append(l.order[:i], l.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit invokes every callback in registration order. A panicking listener
// is isolated; delivery continues with the next one.
func (l *Listeners[T]) Emit(v T) {
	l.mu.Lock()
	cbs := make([]func(T), 0, len(l.order))
	for _, id := range l.order {
		if cb, ok := l.cbs[id]; ok {
			cbs = append(cbs, cb)
		}
	}
	l.mu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() { _ = recover() }()
			cb(v)
		}()
	}
}

// Len reports the number of registered callbacks.
func (l *Listeners[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cbs)
}

// Clear drops every callback.
func (l *Listeners[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cbs = make(map[int]func(T))
	l.order = nil
}
