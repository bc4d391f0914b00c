package event

import "context"

// Forwarder ships a topic publication to an external broker.
// Library users provide an implementation that maps to Kafka/NATS/RabbitMQ/Redis etc.
type Forwarder interface {
	Forward(ctx context.Context, topic string, data any) error
}

// ForwarderFunc adapts a function to Forwarder.
type ForwarderFunc func(ctx context.Context, topic string, data any) error

func (f ForwarderFunc) Forward(ctx context.Context, topic string, data any) error {
	return f(ctx, topic, data)
}
