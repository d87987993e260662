// Package broadcast fans race events out to in-process listeners.
package broadcast

import (
	"sort"
	"sync"

	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/models"
)

// Listener receives published messages. A listener that panics is
// isolated; the remaining listeners still run.
type Listener func(models.WSMessage)

// Broadcaster delivers each published message to every current
// subscriber, at most once, in subscription order.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	log       logger.Logger
}

// New creates a Broadcaster
func New(log logger.Logger) *Broadcaster {
	return &Broadcaster{
		listeners: make(map[int]Listener),
		log:       log,
	}
}

// Subscribe registers a listener and returns a function that removes it.
// The unsubscribe function is idempotent.
func (b *Broadcaster) Subscribe(fn Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish delivers a message to all current subscribers synchronously
func (b *Broadcaster) Publish(msg models.WSMessage) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.deliver(fn, msg)
	}
}

func (b *Broadcaster) deliver(fn Listener, msg models.WSMessage) {
	defer func() {
		if r := recover(); r != nil {
			if b.log != nil {
				b.log.Error("broadcast listener panicked", "type", msg.Type, "panic", r)
			}
		}
	}()
	fn(msg)
}

// ListenerCount returns the number of current subscribers
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
