package descriptor

import (
	"context"
	"reflect"

	"github.com/next-trace/scg-event-service/contract/event"
)

type inferFromParameter struct{}

// InferFromParameter is the default event type of Event declarations. Validation
// replaces it with the handler's first payload parameter type.
var InferFromParameter = reflect.TypeFor[inferFromParameter]()

// Provider is implemented by objects that carry subscription declarations.
// The resolver calls Subscriptions once per Resolve.
type Provider interface {
	Subscriptions() []Declaration
}

// Declaration is an unvalidated subscription request for one handler.
// Build it with Event, EventOf, Topic, TopicOf or TopicPattern.
type Declaration struct {
	kind        event.Kind
	eventType   reflect.Type
	topic       string
	pattern     string
	exact       bool
	strength    event.ReferenceStrength
	serviceName string
	autoCreate  string
	handler     any
}

// Option configures a Declaration.
type Option func(*Declaration)

// Event declares a type-based subscription. The event type is inferred from the
// handler's first payload parameter unless WithEventType is given.
func Event(handler any, opts ...Option) Declaration {
	return build(Declaration{kind: event.TypeBased, eventType: InferFromParameter, handler: handler}, opts)
}

// EventOf declares a type-based subscription for E with a compile-time checked handler.
func EventOf[E any](handler func(ctx context.Context, e E) error, opts ...Option) Declaration {
	d := Declaration{kind: event.TypeBased, eventType: reflect.TypeFor[E]()}
	if handler != nil {
		d.handler = handler
	}

	return build(d, opts)
}

// Topic declares an exact-topic subscription.
// The handler receives the topic and the published data: func(topic string, data D).
func Topic(topic string, handler any, opts ...Option) Declaration {
	return build(Declaration{kind: event.TopicExact, topic: topic, handler: handler}, opts)
}

// TopicOf declares an exact-topic subscription with a compile-time checked handler.
func TopicOf[D any](topic string, handler func(ctx context.Context, topic string, data D) error, opts ...Option) Declaration {
	d := Declaration{kind: event.TopicExact, topic: topic}
	if handler != nil {
		d.handler = handler
	}

	return build(d, opts)
}

// TopicPattern declares a subscription on every topic the regular expression fully matches.
func TopicPattern(pattern string, handler any, opts ...Option) Declaration {
	return build(Declaration{kind: event.TopicPattern, pattern: pattern, handler: handler}, opts)
}

func build(d Declaration, opts []Option) Declaration {
	for _, o := range opts {
		o(&d)
	}

	return d
}

// Exact restricts a type-based subscription to the exact event type.
func Exact() Option { return func(d *Declaration) { d.exact = true } }

// WithEventType sets the event type explicitly. Passing nil is a configuration error.
func WithEventType(t reflect.Type) Option { return func(d *Declaration) { d.eventType = t } }

// WithStrength sets the declared reference strength.
func WithStrength(s event.ReferenceStrength) Option { return func(d *Declaration) { d.strength = s } }

// Weak is shorthand for WithStrength(event.Weak).
func Weak() Option { return WithStrength(event.Weak) }

// OnService targets a named event service instead of the default bus.
func OnService(name string) Option { return func(d *Declaration) { d.serviceName = name } }

// AutoCreate names the service kind to instantiate when the target service does not exist.
func AutoCreate(kind string) Option { return func(d *Declaration) { d.autoCreate = kind } }

// Kind returns the declaration's kind.
func (d Declaration) Kind() event.Kind { return d.kind }

// Handler returns the declared handler function.
func (d Declaration) Handler() any { return d.handler }
