package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	amqp "github.com/rabbitmq/amqp091-go"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
)

// DefaultExchange is the topic exchange forwards are published to.
const DefaultExchange = "integration"

type PubMsg struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

type Publisher interface {
	Publish(ctx context.Context, m PubMsg) error
}

type Adapter struct {
	Publisher  Publisher
	Exchange   string
	Headers    map[string]string
	Propagator event.HeaderPropagator // optional, for context propagation into headers
}

// Option configures an Adapter.
type Option func(*Adapter)

var _ event.Forwarder = (*Adapter)(nil)

func New(p Publisher, opts ...Option) *Adapter {
	a := &Adapter{Publisher: p, Exchange: DefaultExchange}
	for _, o := range opts {
		o(a)
	}

	return a
}

// WithExchange publishes to exchange instead of DefaultExchange.
func WithExchange(exchange string) Option {
	return func(a *Adapter) { a.Exchange = exchange }
}

// WithHeaders adds static headers to every message.
func WithHeaders(h map[string]string) Option {
	return func(a *Adapter) { a.Headers = h }
}

// WithPropagator configures a HeaderPropagator for context propagation.
func WithPropagator(hp event.HeaderPropagator) Option {
	return func(a *Adapter) { a.Propagator = hp }
}

func (a *Adapter) Forward(ctx context.Context, topic string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Publisher == nil {
		return fmt.Errorf("rabbitmq forward %q: %w", topic, berr.ErrForwardFailed)
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("rabbitmq forward %q serialize: %w", topic, errors.Join(berr.ErrSerializationFailed, err))
	}

	// copy headers to avoid mutating the configured map
	hdrs := make(map[string]string, len(a.Headers)+4)
	maps.Copy(hdrs, a.Headers)

	if a.Propagator != nil {
		a.Propagator.Inject(ctx, hdrs)
	}

	msg := PubMsg{
		Exchange:   a.Exchange,
		RoutingKey: topic,
		Body:       body,
		Headers:    hdrs,
	}
	if err := a.Publisher.Publish(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq forward %q publish: %w", topic, errors.Join(berr.ErrForwardFailed, err))
	}

	return nil
}

type amqpChannelPublisher struct{ ch *amqp.Channel }

func (p amqpChannelPublisher) Publish(ctx context.Context, m PubMsg) error {
	return p.ch.PublishWithContext(ctx, m.Exchange, m.RoutingKey, false, false, publishing(m, amqp.Transient))
}

// NewWithAMQPChannel forwards over an existing channel. The exchange must already exist.
func NewWithAMQPChannel(ch *amqp.Channel, opts ...Option) *Adapter {
	return New(amqpChannelPublisher{ch: ch}, opts...)
}

func publishing(m PubMsg, mode uint8) amqp.Publishing {
	var h amqp.Table
	if len(m.Headers) > 0 {
		h = amqp.Table{}
		for k, v := range m.Headers {
			h[k] = v
		}
	}

	return amqp.Publishing{
		DeliveryMode: mode,
		Headers:      h,
		ContentType:  "application/json",
		Body:         m.Body,
	}
}
