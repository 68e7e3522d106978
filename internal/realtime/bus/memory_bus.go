package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/labtwin-backend/internal/platform/logger"
	"github.com/yungbote/labtwin-backend/internal/realtime"
)

const memoryBuffer = 256

// memoryBus fans events out to in-process forwarders. It is the fallback
// when no redis address is configured, and is what tests use.
type memoryBus struct {
	log    *logger.Logger
	mu     sync.RWMutex
	subs   map[int]chan realtime.Event
	nextID int
	closed bool
}

func NewMemoryBus(log *logger.Logger) Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &memoryBus{
		log:  log.With("service", "MemoryEventBus"),
		subs: map[int]chan realtime.Event{},
	}
}

// Publish never blocks; a forwarder that falls a full buffer behind drops
// the event.
func (b *memoryBus) Publish(ctx context.Context, ev realtime.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("event bus closed")
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn("Dropping event for slow forwarder", "forwarder", id, "type", ev.Type)
		}
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus closed")
	}
	id := b.nextID
	b.nextID++
	ch := make(chan realtime.Event, memoryBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		defer b.remove(id)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *memoryBus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
