package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler consumes a domain event. Handlers must tolerate redelivery; the
// notification layer deduplicates on its fan-out key.
type Handler func(ctx context.Context, event Event) error

// Bus is a minimal in-process publish/subscribe dispatcher. Subscribers are
// invoked in registration order on the publisher's goroutine, so publication
// strictly happens-after the state write that triggered it.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *zap.Logger
}

// NewBus constructs an event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a handler for every published event.
func (b *Bus) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

// Publish delivers the event to all subscribers. A failing subscriber is
// logged and does not block the others; the originating transition has
// already committed and must not be rolled back by observer failures.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("source_id", event.SourceID),
				zap.Error(err),
			)
		}
	}
}
