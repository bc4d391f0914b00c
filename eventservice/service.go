package eventservice

// revive:disable:max-public-structs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
)

// Service is an in-process event service with four subscription disciplines:
// exact type, type hierarchy, exact topic and topic pattern.
//
// Service is concurrency-safe and contains no global state.
type Service struct {
	mu sync.RWMutex

	exact    map[reflect.Type][]*registration
	types    []*registration
	topics   map[string][]*registration
	patterns []*registration

	// delivery middleware executed in registration order
	mw []Middleware

	parallel int
	closed   bool
	logger   *slog.Logger
}

var _ event.Service = (*Service)(nil)

// Option configures a Service instance.
type Option func(*Service)

// Delivery describes one subscriber invocation as seen by middleware.
type Delivery struct {
	// ID is the registration's identifier.
	ID    string
	Kind  event.Kind
	Topic string
	// Payload is the event for type deliveries and the data for topic deliveries.
	Payload any
}

// Middleware wraps subscriber invocation. Middlewares are executed in registration order.
type Middleware func(next func(ctx context.Context, d Delivery) error) func(ctx context.Context, d Delivery) error

// Registration is a read-only view of a subscription held by the service.
type Registration struct {
	ID         string
	Kind       event.Kind
	Target     string
	Exact      bool
	Borrowed   bool
	Subscriber any
}

type registration struct {
	id        string
	kind      event.Kind
	borrowed  bool
	exact     bool
	eventType reflect.Type
	topic     string
	pattern   *regexp.Regexp
	anchored  *regexp.Regexp
	sub       any
}

func (r *registration) target() string {
	switch r.kind {
	case event.TypeBased:
		return r.eventType.String()
	case event.TopicExact:
		return r.topic
	default:
		return r.pattern.String()
	}
}

// matches defers to the subscriber's own full-match hook when it has one.
func (r *registration) matches(topic string) bool {
	if m, ok := r.sub.(interface{ Matches(topic string) bool }); ok {
		return m.Matches(topic)
	}

	return r.anchored.MatchString(topic)
}

func (r *registration) alive() bool {
	l, ok := r.sub.(event.Liveness)
	return !ok || l.IsAlive()
}

// New constructs a new Service.
func New(opts ...Option) *Service {
	s := &Service{
		exact:  make(map[reflect.Type][]*registration),
		topics: make(map[string][]*registration),
		logger: slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// WithLogger sets the service logger. A nil logger keeps the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParallelDelivery delivers each publication to its subscribers concurrently.
// limit bounds the number of concurrent invocations; zero or less means unbounded.
func WithParallelDelivery(limit int) Option {
	return func(s *Service) {
		if limit <= 0 {
			limit = -1
		}

		s.parallel = limit
	}
}

// WithMiddleware registers delivery middleware via an option.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Service) { s.mw = append(s.mw, mw...) }
}

// SubscribeExactStrong subscribes s to events whose type is exactly eventType.
func (s *Service) SubscribeExactStrong(eventType reflect.Type, sub event.EventSubscriber) bool {
	return s.subscribeType(eventType, sub, true, false)
}

// SubscribeExact is the borrowed counterpart of SubscribeExactStrong.
func (s *Service) SubscribeExact(eventType reflect.Type, sub event.EventSubscriber) bool {
	return s.subscribeType(eventType, sub, true, true)
}

// SubscribeStrong subscribes s to events assignable to eventType.
func (s *Service) SubscribeStrong(eventType reflect.Type, sub event.EventSubscriber) bool {
	return s.subscribeType(eventType, sub, false, false)
}

// Subscribe is the borrowed counterpart of SubscribeStrong.
func (s *Service) Subscribe(eventType reflect.Type, sub event.EventSubscriber) bool {
	return s.subscribeType(eventType, sub, false, true)
}

// SubscribeTopicStrong subscribes s to one exact topic.
func (s *Service) SubscribeTopicStrong(topic string, sub event.TopicSubscriber) bool {
	return s.subscribeTopic(topic, sub, false)
}

// SubscribeTopic is the borrowed counterpart of SubscribeTopicStrong.
func (s *Service) SubscribeTopic(topic string, sub event.TopicSubscriber) bool {
	return s.subscribeTopic(topic, sub, true)
}

// SubscribePatternStrong subscribes s to every topic the pattern fully matches.
func (s *Service) SubscribePatternStrong(pattern *regexp.Regexp, sub event.TopicSubscriber) bool {
	return s.subscribePattern(pattern, sub, false)
}

// SubscribePattern is the borrowed counterpart of SubscribePatternStrong.
func (s *Service) SubscribePattern(pattern *regexp.Regexp, sub event.TopicSubscriber) bool {
	return s.subscribePattern(pattern, sub, true)
}

func (s *Service) subscribeType(t reflect.Type, sub event.EventSubscriber, exact, borrowed bool) bool {
	if t == nil || isNil(sub) {
		return false
	}

	r := &registration{kind: event.TypeBased, eventType: t, exact: exact, borrowed: borrowed, sub: sub}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropDeadLocked(sub)

	if exact {
		if contains(s.exact[t], sub) {
			return false
		}

		s.exact[t] = append(s.exact[t], s.stamp(r))

		return true
	}

	for _, existing := range s.types {
		if existing.eventType == t && same(existing.sub, sub) {
			return false
		}
	}

	s.types = append(s.types, s.stamp(r))

	return true
}

func (s *Service) subscribeTopic(topic string, sub event.TopicSubscriber, borrowed bool) bool {
	if topic == "" || isNil(sub) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropDeadLocked(sub)

	if contains(s.topics[topic], sub) {
		return false
	}

	r := &registration{kind: event.TopicExact, topic: topic, borrowed: borrowed, sub: sub}
	s.topics[topic] = append(s.topics[topic], s.stamp(r))

	return true
}

func (s *Service) subscribePattern(pattern *regexp.Regexp, sub event.TopicSubscriber, borrowed bool) bool {
	if pattern == nil || isNil(sub) {
		return false
	}

	anchored, err := regexp.Compile(`^(?:` + pattern.String() + `)$`)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropDeadLocked(sub)

	for _, existing := range s.patterns {
		if existing.pattern.String() == pattern.String() && same(existing.sub, sub) {
			return false
		}
	}

	r := &registration{
		kind:     event.TopicPattern,
		pattern:  pattern,
		anchored: anchored,
		borrowed: borrowed,
		sub:      sub,
	}
	s.patterns = append(s.patterns, s.stamp(r))

	return true
}

// dropDeadLocked removes registrations equal to sub whose target is gone, so a
// re-subscription replaces them instead of being taken for a duplicate.
// Callers hold s.mu.
func (s *Service) dropDeadLocked(sub any) {
	if n := s.removeLocked(func(r *registration) bool { return !r.alive() && same(r.sub, sub) }); n > 0 {
		s.logger.Debug("event service replaced released registrations", "count", n)
	}
}

// stamp assigns an ID and logs the registration. Callers hold s.mu.
func (s *Service) stamp(r *registration) *registration {
	r.id = uuid.NewString()
	s.logger.Debug("event service subscribe",
		"id", r.id, "kind", r.kind.String(), "target", r.target(), "exact", r.exact, "borrowed", r.borrowed)

	return r
}

// Unsubscribe removes every registration equal to sub and reports how many were removed.
func (s *Service) Unsubscribe(sub any) int {
	if isNil(sub) {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(func(r *registration) bool { return same(r.sub, sub) })
}

func (s *Service) remove(doomed []*registration) {
	if len(doomed) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[*registration]struct{}, len(doomed))
	for _, r := range doomed {
		set[r] = struct{}{}
	}

	s.removeLocked(func(r *registration) bool {
		_, ok := set[r]
		return ok
	})
}

func (s *Service) removeLocked(match func(*registration) bool) int {
	removed := 0
	filter := func(in []*registration) []*registration {
		out := in[:0]

		for _, r := range in {
			if match(r) {
				removed++
				continue
			}

			out = append(out, r)
		}

		return out
	}

	for t, regs := range s.exact {
		if s.exact[t] = filter(regs); len(s.exact[t]) == 0 {
			delete(s.exact, t)
		}
	}

	for topic, regs := range s.topics {
		if s.topics[topic] = filter(regs); len(s.topics[topic]) == 0 {
			delete(s.topics, topic)
		}
	}

	s.types = filter(s.types)
	s.patterns = filter(s.patterns)

	return removed
}

// Publish delivers event to exact-type subscribers, then to hierarchy subscribers,
// in registration order. Subscribers whose target has been released are removed;
// all other errors are aggregated with errors.Join and returned.
func (s *Service) Publish(ctx context.Context, e any) error {
	if e == nil {
		return fmt.Errorf("publish <nil>: %w", berr.ErrConfiguration)
	}

	t := reflect.TypeOf(e)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("publish %s: %w", t, berr.ErrServiceClosed)
	}

	regs := append([]*registration(nil), s.exact[t]...)
	for _, r := range s.types {
		if t.AssignableTo(r.eventType) {
			regs = append(regs, r)
		}
	}
	s.mu.RUnlock()

	return s.deliver(ctx, regs, Delivery{Kind: event.TypeBased, Payload: e})
}

// PublishTopic delivers data to exact-topic subscribers, then to pattern subscribers.
func (s *Service) PublishTopic(ctx context.Context, topic string, data any) error {
	if topic == "" {
		return fmt.Errorf("publish topic: empty topic: %w", berr.ErrConfiguration)
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("publish topic %q: %w", topic, berr.ErrServiceClosed)
	}

	regs := append([]*registration(nil), s.topics[topic]...)
	for _, r := range s.patterns {
		if r.matches(topic) {
			regs = append(regs, r)
		}
	}
	s.mu.RUnlock()

	return s.deliver(ctx, regs, Delivery{Kind: event.TopicExact, Topic: topic, Payload: data})
}

func (s *Service) deliver(ctx context.Context, regs []*registration, d Delivery) error {
	var dead []*registration

	live := regs[:0:0]

	for _, r := range regs {
		if r.borrowed && !r.alive() {
			dead = append(dead, r)
			continue
		}

		live = append(live, r)
	}

	results := make([]error, len(live))

	if s.parallel != 0 && len(live) > 1 {
		var g errgroup.Group

		g.SetLimit(s.parallel)

		for i, r := range live {
			g.Go(func() error {
				results[i] = s.invoke(ctx, r, d)
				return nil
			})
		}

		_ = g.Wait() //nolint:errcheck // goroutines never return an error; results carry them
	} else {
		for i, r := range live {
			results[i] = s.invoke(ctx, r, d)
		}
	}

	var errs []error

	for i, err := range results {
		switch {
		case err == nil:
		case errors.Is(err, berr.ErrTargetReleased):
			dead = append(dead, live[i])
		default:
			errs = append(errs, err)
		}
	}

	if len(dead) > 0 {
		for _, r := range dead {
			s.logger.Warn("event service dropping released subscriber", "id", r.id, "target", r.target())
		}

		s.remove(dead)
	}

	return errors.Join(errs...)
}

func (s *Service) invoke(ctx context.Context, r *registration, d Delivery) error {
	d.ID = r.id
	if r.kind != event.TypeBased {
		d.Kind = r.kind
	}

	call := func(ctx context.Context, d Delivery) error {
		if d.Kind == event.TypeBased {
			return r.sub.(event.EventSubscriber).OnEvent(ctx, d.Payload) //nolint:forcetypeassert // set by subscribeType
		}

		return r.sub.(event.TopicSubscriber).OnTopicEvent(ctx, d.Topic, d.Payload) //nolint:forcetypeassert // set by subscribeTopic/Pattern
	}

	// Build chain so the first registered middleware runs first
	final := call
	for i := len(s.mw) - 1; i >= 0; i-- {
		final = s.mw[i](final)
	}

	return final(ctx, d)
}

// Subscribers returns the subscribers an event of type t would be delivered to.
func (s *Service) Subscribers(t reflect.Type) []event.EventSubscriber {
	if t == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.EventSubscriber
	for _, r := range s.exact[t] {
		out = append(out, r.sub.(event.EventSubscriber)) //nolint:forcetypeassert // set by subscribeType
	}

	for _, r := range s.types {
		if t.AssignableTo(r.eventType) {
			out = append(out, r.sub.(event.EventSubscriber)) //nolint:forcetypeassert // set by subscribeType
		}
	}

	return out
}

// TopicSubscribers returns the subscribers data published on topic would be delivered to.
func (s *Service) TopicSubscribers(topic string) []event.TopicSubscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.TopicSubscriber
	for _, r := range s.topics[topic] {
		out = append(out, r.sub.(event.TopicSubscriber)) //nolint:forcetypeassert // set by subscribeTopic
	}

	for _, r := range s.patterns {
		if r.matches(topic) {
			out = append(out, r.sub.(event.TopicSubscriber)) //nolint:forcetypeassert // set by subscribePattern
		}
	}

	return out
}

// Registrations returns a snapshot of every registration.
func (s *Service) Registrations() []Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Registration

	view := func(r *registration) {
		out = append(out, Registration{
			ID:         r.id,
			Kind:       r.kind,
			Target:     r.target(),
			Exact:      r.exact,
			Borrowed:   r.borrowed,
			Subscriber: r.sub,
		})
	}

	for _, regs := range s.exact {
		for _, r := range regs {
			view(r)
		}
	}

	for _, r := range s.types {
		view(r)
	}

	for _, regs := range s.topics {
		for _, r := range regs {
			view(r)
		}
	}

	for _, r := range s.patterns {
		view(r)
	}

	return out
}

// Count returns the number of registrations.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.types) + len(s.patterns)
	for _, regs := range s.exact {
		n += len(regs)
	}

	for _, regs := range s.topics {
		n += len(regs)
	}

	return n
}

// Close drops every registration. Later publishes fail with ErrServiceClosed.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.exact = make(map[reflect.Type][]*registration)
	s.topics = make(map[string][]*registration)
	s.types = nil
	s.patterns = nil

	return nil
}

func contains(regs []*registration, sub any) bool {
	for _, r := range regs {
		if same(r.sub, sub) {
			return true
		}
	}

	return false
}

// same reports whether two subscribers are the same subscription.
func same(a, b any) bool {
	if eq, ok := a.(event.Equaler); ok {
		return eq.Equal(b)
	}

	if a == nil || b == nil {
		return a == b
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}

	return a == b
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
