package events_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkvault/chunkvault/pkg/events"
)

type countingHandler struct {
	eventType string
	calls     atomic.Int64
	lastCorr  atomic.Value
}

func (h *countingHandler) EventType() string { return h.eventType }

func (h *countingHandler) Handle(ctx context.Context, e events.Event) error {
	h.calls.Add(1)
	h.lastCorr.Store(e.CorrelationID())
	return nil
}

func TestPublishReachesAllHandlers(t *testing.T) {
	bus := events.NewBus()

	h1 := &countingHandler{eventType: events.TypeChunkStored}
	h2 := &countingHandler{eventType: events.TypeChunkStored}
	other := &countingHandler{eventType: events.TypeFileProcessed}
	bus.Subscribe(h1)
	bus.Subscribe(h2)
	bus.Subscribe(other)

	event := events.NewChunkStored("corr-1")
	event.ChunkID = "f_0"
	bus.Publish(context.Background(), event)

	assert.Equal(t, int64(1), h1.calls.Load())
	assert.Equal(t, int64(1), h2.calls.Load())
	assert.Equal(t, int64(0), other.calls.Load(), "handlers only see their own type")
	assert.Equal(t, "corr-1", h1.lastCorr.Load())
}

func TestPublishWithNoHandlers(t *testing.T) {
	bus := events.NewBus()
	// Must not block or panic.
	bus.Publish(context.Background(), events.NewFileProcessed("corr-1"))
}

func TestHandlerFailureIsIsolated(t *testing.T) {
	bus := events.NewBus()

	healthy := &countingHandler{eventType: events.TypeFileProcessed}
	bus.Subscribe(events.HandlerFunc{
		Type: events.TypeFileProcessed,
		Fn: func(ctx context.Context, e events.Event) error {
			return errors.New("backend unavailable")
		},
	})
	bus.Subscribe(events.HandlerFunc{
		Type: events.TypeFileProcessed,
		Fn: func(ctx context.Context, e events.Event) error {
			panic("handler bug")
		},
	})
	bus.Subscribe(healthy)

	bus.Publish(context.Background(), events.NewFileProcessed("corr-2"))

	assert.Equal(t, int64(1), healthy.calls.Load(),
		"a failing or panicking sibling must not starve healthy handlers")
}

func TestPublishWaitsForCompletion(t *testing.T) {
	bus := events.NewBus()

	var mu sync.Mutex
	done := 0
	const handlers = 8
	for i := 0; i < handlers; i++ {
		bus.Subscribe(events.HandlerFunc{
			Type: events.TypeDirectoryScan,
			Fn: func(ctx context.Context, e events.Event) error {
				mu.Lock()
				done++
				mu.Unlock()
				return nil
			},
		})
	}

	bus.Publish(context.Background(), events.NewDirectoryScan("corr-3"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, handlers, done, "publish returns only after every handler completed")
}

func TestBindAutoDiscovery(t *testing.T) {
	bus := events.NewBus()

	h := &countingHandler{eventType: events.TypeFileDiscovered}
	bound := bus.Bind("not a handler", h, 42, nil)

	assert.Equal(t, 1, bound)
	assert.Equal(t, 1, bus.HandlerCount(events.TypeFileDiscovered))
}

func TestEventIdentity(t *testing.T) {
	a := events.NewChunkStored("corr")
	b := events.NewChunkStored("corr")

	require.NotEmpty(t, a.EventID())
	assert.NotEqual(t, a.EventID(), b.EventID())
	assert.Equal(t, events.TypeChunkStored, a.EventType())
	assert.False(t, a.OccurredAt().IsZero())
}
