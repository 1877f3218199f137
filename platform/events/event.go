// Package events is the in-process publish/subscribe bus. Modules publish
// facts about claims and conversations; subscribers such as notification turn
// them into side effects.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every published fact.
type Event interface {
	// EventName is the subscription key, e.g. "claims.created".
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the identity and time of one publication. Embed it in
// concrete events.
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

func (e BaseEvent) EventID() uuid.UUID { return e.ID }

func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

// IDOf returns the event's id, or "" for events without a BaseEvent.
func IDOf(event Event) string {
	if e, ok := event.(interface{ EventID() uuid.UUID }); ok && e.EventID() != uuid.Nil {
		return e.EventID().String()
	}
	return ""
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus delivers events to the handlers subscribed to their name.
type Bus interface {
	// Publish hands the event to each handler without waiting.
	Publish(ctx context.Context, event Event)
	// PublishSync runs the handlers in subscription order and returns their
	// joined errors. Callers use it when replies must keep mutation order.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
