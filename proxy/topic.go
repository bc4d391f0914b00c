package proxy

import (
	"context"
	"fmt"
	"reflect"
	"regexp"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/lifetime"
)

var stringType = reflect.TypeFor[string]()

// TopicProxy delivers data published on one exact topic.
type TopicProxy struct {
	base
	topic string
}

var (
	_ event.TopicSubscriber = (*TopicProxy)(nil)
	_ event.Liveness        = (*TopicProxy)(nil)
	_ event.Equaler         = (*TopicProxy)(nil)
)

// NewTopic builds an exact-topic proxy. The handler takes (topic string, data D).
func NewTopic(ref lifetime.Ref, handler any, svc event.Service, topic string) (*TopicProxy, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic proxy: empty topic: %w", berr.ErrConfiguration)
	}

	p := &TopicProxy{topic: topic}
	if err := p.initTopic(ref, handler, svc); err != nil {
		return nil, err
	}

	return p, nil
}

// OnTopicEvent invokes the handler with the topic and data.
func (p *TopicProxy) OnTopicEvent(ctx context.Context, topic string, data any) error {
	return p.invoke(ctx, topic, data)
}

// Topic returns the subscribed topic.
func (p *TopicProxy) Topic() string { return p.topic }

// Matches is case-sensitive string equality.
func (p *TopicProxy) Matches(topic string) bool { return topic == p.topic }

// Equal reports whether other wraps the same target, handler and topic.
func (p *TopicProxy) Equal(other any) bool {
	o, ok := other.(*TopicProxy)
	if !ok || o == nil {
		return false
	}

	return p.same(&o.base) && p.topic == o.topic
}

func (p *TopicProxy) String() string {
	return fmt.Sprintf("topic proxy %q (%s)", p.topic, p.Strength())
}

// PatternProxy delivers data published on every topic its pattern fully matches.
type PatternProxy struct {
	base
	pattern  *regexp.Regexp
	anchored *regexp.Regexp
}

var (
	_ event.TopicSubscriber = (*PatternProxy)(nil)
	_ event.Liveness        = (*PatternProxy)(nil)
	_ event.Equaler         = (*PatternProxy)(nil)
)

// NewPattern builds a topic-pattern proxy. The handler takes (topic string, data D).
func NewPattern(ref lifetime.Ref, handler any, svc event.Service, pattern *regexp.Regexp) (*PatternProxy, error) {
	if pattern == nil {
		return nil, fmt.Errorf("pattern proxy: nil pattern: %w", berr.ErrConfiguration)
	}

	anchored, err := regexp.Compile(`^(?:` + pattern.String() + `)$`)
	if err != nil {
		return nil, fmt.Errorf("pattern proxy %q: %w: %w", pattern, berr.ErrPatternCompilation, err)
	}

	p := &PatternProxy{pattern: pattern, anchored: anchored}
	if err := p.initTopic(ref, handler, svc); err != nil {
		return nil, err
	}

	return p, nil
}

// OnTopicEvent invokes the handler with the topic and data.
func (p *PatternProxy) OnTopicEvent(ctx context.Context, topic string, data any) error {
	return p.invoke(ctx, topic, data)
}

// Pattern returns the pattern the proxy was built with.
func (p *PatternProxy) Pattern() *regexp.Regexp { return p.pattern }

// Matches reports whether the whole topic matches the pattern.
func (p *PatternProxy) Matches(topic string) bool { return p.anchored.MatchString(topic) }

// Equal reports whether other wraps the same target, handler and pattern source.
func (p *PatternProxy) Equal(other any) bool {
	o, ok := other.(*PatternProxy)
	if !ok || o == nil {
		return false
	}

	return p.same(&o.base) && p.pattern.String() == o.pattern.String()
}

func (p *PatternProxy) String() string {
	return fmt.Sprintf("pattern proxy %q (%s)", p.pattern, p.Strength())
}

func (b *base) initTopic(ref lifetime.Ref, handler any, svc event.Service) error {
	if err := b.init(ref, handler, svc, 2); err != nil {
		return err
	}

	if s := b.handler.Load(); !s.Accepts(0, stringType) {
		return fmt.Errorf("topic proxy: handler %s must take the topic string first: %w", s, berr.ErrConfiguration)
	}

	return nil
}
