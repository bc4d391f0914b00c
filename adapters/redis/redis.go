// Package redis forwards topic publications to Redis Pub/Sub and relays Redis
// channels back into an event service.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
)

// Publisher is the slice of a Redis client the adapter needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Adapter implements event.Forwarder by publishing JSON on channel prefix+topic.
type Adapter struct {
	Publisher Publisher
	Prefix    string
}

// Option configures an Adapter.
type Option func(*Adapter)

var _ event.Forwarder = (*Adapter)(nil)

// New creates a new Redis adapter instance with the provided publisher.
func New(p Publisher, opts ...Option) *Adapter {
	a := &Adapter{Publisher: p}
	for _, o := range opts {
		o(a)
	}

	return a
}

// WithChannelPrefix prepends prefix to every channel.
func WithChannelPrefix(prefix string) Option {
	return func(a *Adapter) { a.Prefix = prefix }
}

func (a *Adapter) Forward(ctx context.Context, topic string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Publisher == nil {
		return fmt.Errorf("redis forward %q: %w", topic, berr.ErrForwardFailed)
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("redis forward %q serialize: %w", topic, errors.Join(berr.ErrSerializationFailed, err))
	}

	if err := a.Publisher.Publish(ctx, a.Prefix+topic, body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("redis forward %q publish: %w", topic, errors.Join(berr.ErrForwardFailed, err))
	}

	return nil
}

type clientPublisher struct{ c goredis.UniversalClient }

func (p clientPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.c.Publish(ctx, channel, payload).Err()
}

// NewWithClient forwards through an existing go-redis client.
func NewWithClient(c goredis.UniversalClient, opts ...Option) *Adapter {
	return New(clientPublisher{c: c}, opts...)
}
