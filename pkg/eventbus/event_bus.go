// Package eventbus provides event-driven notification fan-out for the
// approval engine. Publication is fire-and-forget from the engine's point
// of view: callers wrap publish errors as best-effort.
package eventbus

import (
	"context"

	"github.com/tracio/approvalflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// PublishToRole addresses every member of an approver role.
	PublishToRole(ctx context.Context, role string, event Event) error
	// PublishToDocument addresses watchers of a single document.
	PublishToDocument(ctx context.Context, documentID string, event Event) error
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
