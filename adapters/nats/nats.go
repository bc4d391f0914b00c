package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
)

// TopicHeader carries the unprefixed topic.
const TopicHeader = "x-topic"

// Client is a minimal NATS-like publisher interface decoupled from any concrete library.
// Users can provide a wrapper around their NATS connection to satisfy this.
type Client interface {
	// Publish publishes a message to a subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error
}

// Adapter implements event.Forwarder using an injected NATS-like Client.
// Each topic publication becomes a JSON message on subject prefix+topic.
type Adapter struct {
	Client     Client
	Prefix     string
	Headers    map[string]string
	Propagator event.HeaderPropagator
}

// Option configures an Adapter.
type Option func(*Adapter)

// Ensure Adapter implements the forwarding contract.
var _ event.Forwarder = (*Adapter)(nil)

// New creates a new NATS adapter instance with the provided client.
func New(c Client, opts ...Option) *Adapter {
	a := &Adapter{Client: c, Propagator: event.NopHeaderPropagator{}}
	for _, o := range opts {
		o(a)
	}

	return a
}

// WithSubjectPrefix prepends prefix to every subject.
func WithSubjectPrefix(prefix string) Option {
	return func(a *Adapter) { a.Prefix = prefix }
}

// WithHeaders adds static headers to every message.
func WithHeaders(h map[string]string) Option {
	return func(a *Adapter) { a.Headers = h }
}

// WithPropagator injects tracing context into message headers.
func WithPropagator(p event.HeaderPropagator) Option {
	return func(a *Adapter) {
		if p != nil {
			a.Propagator = p
		}
	}
}

func (a *Adapter) Forward(ctx context.Context, topic string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Client == nil {
		return fmt.Errorf("nats forward %q: %w", topic, berr.ErrForwardFailed)
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("nats forward %q serialize: %w", topic, errors.Join(berr.ErrSerializationFailed, err))
	}

	headers := a.headers(ctx, topic)

	if err := a.Client.Publish(a.Prefix+topic, body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats forward %q publish: %w", topic, errors.Join(berr.ErrForwardFailed, err))
	}

	return nil
}

func (a *Adapter) headers(ctx context.Context, topic string) map[string]string {
	h := make(map[string]string, len(a.Headers)+2)
	maps.Copy(h, a.Headers)

	h["content-type"] = "application/json"
	h[TopicHeader] = topic

	if a.Propagator != nil {
		a.Propagator.Inject(ctx, h)
	}

	return h
}
