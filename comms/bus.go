package comms

import (
	"context"
	"fmt"
	"sync"
)

// DefaultHistorySize caps the retained event history.
const DefaultHistorySize = 1000

// InMemoryBus is a thread-safe in-process event bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // owner (or Wildcard) -> handlers
	history  []*Event
	maxHist  int
	nextID   int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryBus creates an InMemoryBus retaining up to historySize events.
// A non-positive size selects DefaultHistorySize.
func NewInMemoryBus(historySize int) *InMemoryBus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &InMemoryBus{
		handlers: make(map[string][]handlerEntry),
		maxHist:  historySize,
	}
}

// Publish records ev and invokes every handler subscribed to its owner or
// to Wildcard. Handlers run outside the lock, in the caller's goroutine.
func (b *InMemoryBus) Publish(ctx context.Context, ev *Event) error {
	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}

	var targets []Handler
	for _, e := range b.handlers[ev.Owner] {
		targets = append(targets, e.handler)
	}
	if ev.Owner != Wildcard {
		for _, e := range b.handlers[Wildcard] {
			targets = append(targets, e.handler)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish: %d handler error(s): %w", len(errs), errs[0])
	}
	return nil
}

// Subscribe registers a handler for owner. The returned function
// unsubscribes the handler.
func (b *InMemoryBus) Subscribe(owner string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[owner] = append(b.handlers[owner], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[owner]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, owner)
		} else {
			b.handlers[owner] = filtered
		}
	}
}

// History returns the most recent limit events belonging to owner.
func (b *InMemoryBus) History(owner string, limit int) ([]*Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*Event
	for i := len(b.history) - 1; i >= 0; i-- {
		ev := b.history[i]
		if owner == Wildcard || ev.Owner == owner {
			result = append(result, ev)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	// Reverse to chronological order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result, nil
}
