package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/chunkvault/chunkvault/internal/logger"
)

// Handler consumes one event type.
type Handler interface {
	// EventType names the event this handler consumes.
	EventType() string

	// Handle processes one event. The error is logged, never propagated
	// to the publisher.
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	Type string
	Fn   func(ctx context.Context, event Event) error
}

func (h HandlerFunc) EventType() string { return h.Type }

func (h HandlerFunc) Handle(ctx context.Context, event Event) error {
	return h.Fn(ctx, event)
}

// Bus is the in-process event dispatcher.
//
// Thread Safety: the handler map is written during registration (typically
// startup) and read-locked during publish; registering while publishing is
// safe but handlers added mid-publish are not seen by that publish.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler against its declared event type.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[h.EventType()] = append(b.handlers[h.EventType()], h)
}

// Bind auto-registers every value that implements Handler and reports how
// many were bound. Non-handler values are skipped, which lets callers pass
// a mixed bag of collaborators and bind whatever qualifies.
func (b *Bus) Bind(candidates ...any) int {
	bound := 0
	for _, c := range candidates {
		if h, ok := c.(Handler); ok {
			b.Subscribe(h)
			bound++
		}
	}
	return bound
}

// HandlerCount returns the number of handlers registered for an event type.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Publish dispatches the event to every handler registered for its type,
// concurrently, and returns when all of them have completed. Handler
// failures and panics are logged with the event's correlation id; they
// never cancel the publish or the sibling handlers.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventType()]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			b.dispatch(ctx, h, event)
		}(h)
	}
	wg.Wait()
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				logger.KeyEventType, event.EventType(),
				logger.KeyCorrelationID, event.CorrelationID(),
				logger.KeyError, fmt.Sprint(r))
		}
	}()

	if err := h.Handle(ctx, event); err != nil {
		logger.Warn("event handler failed",
			logger.KeyEventType, event.EventType(),
			logger.KeyCorrelationID, event.CorrelationID(),
			logger.KeyError, err.Error())
	}
}
