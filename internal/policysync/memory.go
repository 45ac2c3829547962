package policysync

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryBus fans notifications out to in-process subscribers.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[chan struct{}]bool
	closed      chan struct{}
	closeOnce   sync.Once
}

// NewMemoryBus creates an in-process bus
func NewMemoryBus() *MemoryBus {
	slog.Debug("Initialized in-memory policy sync bus")
	return &MemoryBus{
		subscribers: make(map[chan struct{}]bool),
		closed:      make(chan struct{}),
	}
}

// Publish notifies every subscriber. Notifications coalesce: a subscriber
// that has not consumed the previous one is not queued a second time.
func (b *MemoryBus) Publish(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe blocks, invoking handler per notification
func (b *MemoryBus) Subscribe(ctx context.Context, handler func()) error {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	b.subscribers[ch] = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.closed:
			return nil
		case <-ch:
			handler()
		}
	}
}

// Close unblocks all subscribers
func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}
