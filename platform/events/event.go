// Package events provides the in-process event bus the modules use to
// communicate without importing each other. It carries no business logic.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName returns a stable identifier for the event type.
	EventName() string
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent carries the fields shared by all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler processes events of a single type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to registered handlers.
type Bus interface {
	// Publish dispatches the event to every handler subscribed to its
	// name. Handlers run asynchronously.
	Publish(ctx context.Context, event Event)

	// Subscribe registers a handler for the named event type. The name
	// must match Event.EventName().
	Subscribe(eventName string, handler Handler)
}
