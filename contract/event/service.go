package event

import (
	"context"
	"reflect"
	"regexp"
)

// DefaultBusName is the well-known name of the process event bus.
const DefaultBusName = "EventBus"

// Service is the capability set of a named event service as seen by the resolver.
//
// Strong registrations keep the subscriber for as long as it stays registered.
// The weak counterparts (no Strong suffix) tag the registration as borrowed: the service
// checks Liveness before every delivery and drops subscribers whose target is gone.
//
// Subscribe methods return false when an equal subscription already exists for the
// same discipline and key. Implementations must be safe for concurrent use.
type Service interface {
	// Type-based, exact class only.
	SubscribeExactStrong(eventType reflect.Type, s EventSubscriber) bool
	SubscribeExact(eventType reflect.Type, s EventSubscriber) bool

	// Type-based, the type and everything assignable to it.
	SubscribeStrong(eventType reflect.Type, s EventSubscriber) bool
	Subscribe(eventType reflect.Type, s EventSubscriber) bool

	// Topic-based, exact case-sensitive topic.
	SubscribeTopicStrong(topic string, s TopicSubscriber) bool
	SubscribeTopic(topic string, s TopicSubscriber) bool

	// Topic-based, full-match regular expression.
	SubscribePatternStrong(pattern *regexp.Regexp, s TopicSubscriber) bool
	SubscribePattern(pattern *regexp.Regexp, s TopicSubscriber) bool

	// Unsubscribe removes every registration equal to s and reports how many were removed.
	Unsubscribe(s any) int

	Publish(ctx context.Context, event any) error
	PublishTopic(ctx context.Context, topic string, data any) error

	// Lifecycle
	Close() error
}

// Factory constructs a fresh event service with no arguments.
// The locator calls it to auto-create a named service on first use.
type Factory func() (Service, error)
