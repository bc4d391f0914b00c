package descriptor

import (
	"fmt"
	"reflect"
	"regexp"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/internal/shape"
)

// Descriptor is a validated declaration. Treat it as immutable.
type Descriptor struct {
	Kind event.Kind

	// Match target; exactly one is set according to Kind.
	EventType reflect.Type
	Topic     string
	Pattern   *regexp.Regexp

	// PatternSource is the pattern as declared, before anchoring.
	PatternSource string

	Exact       bool
	Strength    event.ReferenceStrength
	ServiceName string
	AutoCreate  string
	Handler     any
}

// Target renders the match target for logs.
func (d Descriptor) Target() string {
	switch d.Kind {
	case event.TypeBased:
		return d.EventType.String()
	case event.TopicExact:
		return d.Topic
	default:
		return d.PatternSource
	}
}

// Validate checks d and returns its descriptor.
//
// Missing or malformed fields fail with ErrConfiguration; an invalid pattern fails
// with ErrPatternCompilation. Patterns are anchored so they only match whole topics.
func Validate(d Declaration) (Descriptor, error) {
	out := Descriptor{
		Kind:        d.kind,
		Exact:       d.exact,
		Strength:    d.strength,
		ServiceName: d.serviceName,
		AutoCreate:  d.autoCreate,
		Handler:     d.handler,
	}

	if out.ServiceName == "" {
		out.ServiceName = event.DefaultBusName
	}

	if d.handler == nil {
		return Descriptor{}, fmt.Errorf("%s subscription: handler is nil: %w", d.kind, berr.ErrConfiguration)
	}

	if d.exact && d.kind != event.TypeBased {
		return Descriptor{}, fmt.Errorf("%s subscription: exact applies to type subscriptions only: %w",
			d.kind, berr.ErrConfiguration)
	}

	switch d.kind {
	case event.TypeBased:
		t, err := eventType(d)
		if err != nil {
			return Descriptor{}, err
		}

		out.EventType = t
	case event.TopicExact:
		if d.topic == "" {
			return Descriptor{}, fmt.Errorf("topic subscription: topic cannot be empty: %w", berr.ErrConfiguration)
		}

		out.Topic = d.topic
	case event.TopicPattern:
		p, err := Compile(d.pattern)
		if err != nil {
			return Descriptor{}, err
		}

		out.Pattern = p
		out.PatternSource = d.pattern
	default:
		return Descriptor{}, fmt.Errorf("subscription kind %d: %w", d.kind, berr.ErrConfiguration)
	}

	return out, nil
}

// Compile compiles a topic pattern for full-match use.
func Compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("topic pattern subscription: pattern cannot be empty: %w", berr.ErrConfiguration)
	}

	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("compile topic pattern %q: %w: %w", pattern, berr.ErrPatternCompilation, err)
	}

	return regexp.MustCompile(`^(?:` + pattern + `)$`), nil
}

func eventType(d Declaration) (reflect.Type, error) {
	if d.eventType == nil {
		return nil, fmt.Errorf("type subscription: event type cannot be nil: %w", berr.ErrConfiguration)
	}

	if d.eventType != InferFromParameter {
		return d.eventType, nil
	}

	s, err := shape.Of(d.handler)
	if err != nil {
		return nil, fmt.Errorf("type subscription: %w", err)
	}

	if s.Arity() < 1 {
		return nil, fmt.Errorf("type subscription %s: annotated method must declare one parameter when event type is inferred: %w",
			s, berr.ErrConfiguration)
	}

	return s.Params()[0], nil
}

// Scan returns the declarations carried by candidate.
// A nil candidate, including a typed nil, or one that is not a Provider carries none.
func Scan(candidate any) []Declaration {
	if isNil(candidate) {
		return nil
	}

	p, ok := candidate.(Provider)
	if !ok {
		return nil
	}

	return p.Subscriptions()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
