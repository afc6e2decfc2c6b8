// Package events implements the in-process typed event bus.
//
// Delivery is at-most-once with no persistence and no ordering across
// event types. Handlers for one event run concurrently; a failing or
// panicking handler is logged and isolated, never cancelling the publish
// or its siblings.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the capability set every published record carries.
type Event interface {
	// EventID is the unique id of this occurrence.
	EventID() string

	// EventType names the concrete event and keys handler dispatch.
	EventType() string

	// OccurredAt is when the event was created.
	OccurredAt() time.Time

	// CorrelationID ties the event back to the operation that produced it.
	CorrelationID() string
}

// Base carries the common event fields. Concrete events embed it.
type Base struct {
	ID          string    `json:"eventId"`
	Type        string    `json:"eventType"`
	Timestamp   time.Time `json:"timestamp"`
	Correlation string    `json:"correlationId"`
}

func newBase(eventType, correlationID string) Base {
	return Base{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		Correlation: correlationID,
	}
}

func (b Base) EventID() string       { return b.ID }
func (b Base) EventType() string     { return b.Type }
func (b Base) OccurredAt() time.Time { return b.Timestamp }
func (b Base) CorrelationID() string { return b.Correlation }
