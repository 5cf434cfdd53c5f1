package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in.
	// An empty slice means the handler receives all events.
	EventTypes() []string
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber registers handlers by event type. No event types means
// every event.
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// EventSource is an aggregate that buffers events until it is saved
type EventSource interface {
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// PublishPending drains the buffered events of src and publishes them. The
// buffer is cleared even when publishing fails so a retried save does not
// emit the same events twice.
func PublishPending(ctx context.Context, publisher EventPublisher, src EventSource) error {
	events := src.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	src.ClearDomainEvents()
	return publisher.Publish(ctx, events...)
}

// NopPublisher discards every event. Useful for tools and tests that do not
// care about side effects.
type NopPublisher struct{}

// Publish implements EventPublisher
func (NopPublisher) Publish(context.Context, ...DomainEvent) error { return nil }
