package memory

import (
	"context"
	"sync"

	"auctionhouse/internal/domain"
)

// EventBus is an in-process event transport: publishes dispatch synchronously
// to every subscribed handler. It stands in for the Redis channel in tests
// and single-process runs.
type EventBus struct {
	mu       sync.RWMutex
	handlers []domain.EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

func (b *EventBus) PublishEvent(ctx context.Context, event *domain.Event) error {
	b.mu.RLock()
	handlers := make([]domain.EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			return err
		}
	}
	return nil
}

// SubscribeToEvents registers the handler and blocks until the context ends,
// matching the subscriber contract of the Redis transport.
func (b *EventBus) SubscribeToEvents(ctx context.Context, handler domain.EventHandler) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}
