// Package events is the in-process publish/subscribe layer the conversation
// and ghost modules use to announce state changes (lead created, stage moved,
// nudge sent) without importing each other.
package events

import (
	"context"
	"time"
)

// Event is anything the bus can carry. Names are dotted and stable, e.g.
// "conversation.stage.changed"; consumers key their subscriptions on them.
type Event interface {
	EventName() string
	// OccurredAt is when the state change happened, not when it was handled.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp every event shares. Embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish fans the event out without waiting; handler failures are the
	// bus's problem, never the publisher's.
	Publish(ctx context.Context, event Event)

	// PublishSync waits for every handler and returns the first error, for
	// callers that cannot proceed until the event has been consumed.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the name Event.EventName() returns.
	Subscribe(eventName string, handler Handler)
}
