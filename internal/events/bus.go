package events

import (
	"context"
	"sync"
	"time"
)

// Bus is an in-process publisher that fans events out to subscribers.
// Slow subscribers are skipped rather than blocking the money path.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewBus constructs an in-process event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving future events.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish fans the event out without blocking.
func (b *Bus) Publish(_ context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}
