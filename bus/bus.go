// Package bus is an in-process message bus: a mapping from event kind to an
// ordered list of handlers. Publish delivers synchronously, in subscription
// order, on the publisher's goroutine.
package bus

import (
	"context"
	"slices"
	"sync"
)

// Handler receives an event. The concrete type matches the subscribed Kind.
type Handler func(ctx context.Context, ev Event)

type subscription struct {
	id uint64
	h  Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]subscription
}

func New() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers h for kind and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, h: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := slices.DeleteFunc(slices.Clone(b.subs[kind]), func(s subscription) bool { return s.id == id })
	if len(subs) == 0 {
		delete(b.subs, kind)
		return
	}
	b.subs[kind] = subs
}

// Publish delivers ev to the handlers subscribed to its kind at the time of
// the call. Handlers may publish or (un)subscribe re-entrantly.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := b.subs[ev.Kind()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.h(ctx, ev)
	}
}

// Subscribers returns the number of handlers registered for kind.
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
