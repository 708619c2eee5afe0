package notifykit

import (
	"log/slog"
	"sync"

	"github.com/tinywideclouds/go-notification-kit/internal/metrics"
	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// eventBus fans lifecycle events out to per-type listener lists. Delivery
// is synchronous, in registration order, to the listeners present at
// emission time; events are never buffered or replayed.
type eventBus struct {
	logger  *slog.Logger
	metrics *metrics.KitMetrics

	mu        sync.Mutex
	nextID    int
	listeners map[notify.EventType][]busEntry
}

type busEntry struct {
	id int
	cb func(notify.Event)
}

func newEventBus(logger *slog.Logger, m *metrics.KitMetrics) *eventBus {
	return &eventBus{
		logger:    logger.With("component", "EventBus"),
		metrics:   m,
		listeners: make(map[notify.EventType][]busEntry),
	}
}

// on registers a listener and returns an idempotent unsubscribe closure.
func (b *eventBus) on(t notify.EventType, cb func(notify.Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[t] = append(b.listeners[t], busEntry{id: id, cb: cb})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			entries := b.listeners[t]
			for i, e := range entries {
				if e.id == id {
					b.listeners[t] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
		})
	}
}

// off drops every listener registered for the given type.
func (b *eventBus) off(t notify.EventType) {
	b.mu.Lock()
	delete(b.listeners, t)
	b.mu.Unlock()
}

// emit delivers the event to each listener in order. A panicking listener
// is recovered and logged; the remaining listeners still run.
func (b *eventBus) emit(ev notify.Event) {
	b.mu.Lock()
	entries := make([]busEntry, len(b.listeners[ev.Type]))
	copy(entries, b.listeners[ev.Type])
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordEvent(string(ev.Type))
	}
	for _, e := range entries {
		b.deliver(ev, e)
	}
}

func (b *eventBus) deliver(ev notify.Event, e busEntry) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.RecordListenerPanic(string(ev.Type))
			}
			b.logger.Error("event listener panicked", "type", ev.Type, "panic", r)
		}
	}()
	e.cb(ev)
}

// clear drops every listener for every type.
func (b *eventBus) clear() {
	b.mu.Lock()
	b.listeners = make(map[notify.EventType][]busEntry)
	b.mu.Unlock()
}
