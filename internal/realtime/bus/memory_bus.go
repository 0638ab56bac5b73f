package bus

import (
	"context"
	"fmt"
	"sync"
)

// memoryBus delivers synchronously to subscribers in the same process. It is
// what a single instance runs with when no redis address is configured.
type memoryBus struct {
	mu     sync.RWMutex
	subs   map[int]func(Invalidation)
	nextID int
	closed bool
}

func NewMemoryBus() Bus {
	return &memoryBus{subs: map[int]func(Invalidation){}}
}

func (b *memoryBus) Publish(ctx context.Context, msg Invalidation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("memory bus closed")
	}
	for _, fn := range b.subs {
		fn(msg)
	}
	return nil
}

// StartForwarder registers onMsg until ctx ends or the bus is closed.
func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m Invalidation)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("memory bus closed")
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = onMsg
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	})
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[int]func(Invalidation){}
	return nil
}
