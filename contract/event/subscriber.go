package event

import "context"

// EventSubscriber receives events published by type.
// Implementations must be safe for concurrent use by multiple goroutines.
type EventSubscriber interface {
	OnEvent(ctx context.Context, event any) error
}

// TopicSubscriber receives data published on a topic.
type TopicSubscriber interface {
	OnTopicEvent(ctx context.Context, topic string, data any) error
}

// Liveness is implemented by subscribers whose target may go away while registered.
type Liveness interface {
	IsAlive() bool
}

// Equaler lets a subscriber decide whether another registration is the same subscription.
// Services use it to keep re-registration idempotent.
type Equaler interface {
	Equal(other any) bool
}

// EventSubscriberFunc adapts a plain function to EventSubscriber.
type EventSubscriberFunc func(ctx context.Context, event any) error

func (f EventSubscriberFunc) OnEvent(ctx context.Context, event any) error { return f(ctx, event) }

// TopicSubscriberFunc adapts a plain function to TopicSubscriber.
type TopicSubscriberFunc func(ctx context.Context, topic string, data any) error

func (f TopicSubscriberFunc) OnTopicEvent(ctx context.Context, topic string, data any) error {
	return f(ctx, topic, data)
}
