package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cashback_backend/platform/logger"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var order []int
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 1)
		return nil
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 2)
		return errors.New("boom")
	}))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	if err == nil {
		t.Fatal("expected handler error to be returned")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected handlers to run in subscription order, got %v", order)
	}
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var calls atomic.Int32
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		panic("handler bug")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	cancel()
	bus.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected healthy handler to run once, got %d", calls.Load())
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	bus.Publish(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	if err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBaseEventCarriesID(t *testing.T) {
	first, second := pingEvent{BaseEvent: NewBaseEvent()}, pingEvent{BaseEvent: NewBaseEvent()}
	if IDOf(first) == "" || IDOf(first) == IDOf(second) {
		t.Fatalf("expected distinct event ids, got %q and %q", IDOf(first), IDOf(second))
	}
	if first.OccurredAt().Location() != time.UTC {
		t.Fatal("expected UTC timestamps")
	}
	if IDOf(pingEvent{}) != "" {
		t.Fatal("expected no id for a zero event")
	}
}
