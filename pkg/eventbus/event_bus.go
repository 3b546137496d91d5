// Package eventbus publishes and consumes execution lifecycle events.
package eventbus

import (
	"context"

	"github.com/dukex/inboxflow/pkg/events"
)

type Event = events.Event

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// Noop drops every event. It serves runs that have no bus configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, Event) error { return nil }
func (Noop) Handle(events.EventType, EventHandler) error  { return nil }
func (Noop) Subscribe(context.Context) error              { return nil }
func (Noop) Close() error                                 { return nil }
func (Noop) GenerateID() string                           { return "" }
