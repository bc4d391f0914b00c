package eventservice_test

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"sync/atomic"
	"testing"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/eventservice"
)

type animal interface{ Sound() string }

type dog struct{ Name string }

func (dog) Sound() string { return "woof" }

type cat struct{}

func (cat) Sound() string { return "meow" }

// fakes

type countingSub struct {
	calls atomic.Int32
	err   error
}

func (c *countingSub) OnEvent(ctx context.Context, e any) error {
	c.calls.Add(1)

	return c.err
}

func (c *countingSub) OnTopicEvent(ctx context.Context, topic string, data any) error {
	c.calls.Add(1)

	return c.err
}

type mortalSub struct {
	countingSub
	alive atomic.Bool
}

func (m *mortalSub) IsAlive() bool { return m.alive.Load() }

func (m *mortalSub) OnTopicEvent(ctx context.Context, topic string, data any) error {
	if !m.alive.Load() {
		return berr.ErrTargetReleased
	}

	return m.countingSub.OnTopicEvent(ctx, topic, data)
}

// keyedSub compares equal to any keyedSub with the same key, like two proxies
// built for the same target and handler.
type keyedSub struct {
	key string
	*mortalSub
}

func (k *keyedSub) Equal(other any) bool {
	o, ok := other.(*keyedSub)
	return ok && o.key == k.key
}

func Test_ExactVersusHierarchy(t *testing.T) {
	s := eventservice.New()

	exact := &countingSub{}
	hier := &countingSub{}

	if !s.SubscribeExactStrong(reflect.TypeFor[animal](), exact) {
		t.Fatalf("exact subscribe refused")
	}

	if !s.SubscribeStrong(reflect.TypeFor[animal](), hier) {
		t.Fatalf("hierarchy subscribe refused")
	}

	if err := s.Publish(t.Context(), dog{Name: "rex"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if exact.calls.Load() != 0 {
		t.Fatalf("exact subscriber must not see implementers, got %d", exact.calls.Load())
	}

	if hier.calls.Load() != 1 {
		t.Fatalf("hierarchy subscriber calls=%d", hier.calls.Load())
	}

	dogs := &countingSub{}
	s.SubscribeExactStrong(reflect.TypeFor[dog](), dogs)

	_ = s.Publish(t.Context(), dog{})
	_ = s.Publish(t.Context(), cat{})

	if dogs.calls.Load() != 1 {
		t.Fatalf("dog subscriber calls=%d", dogs.calls.Load())
	}

	if hier.calls.Load() != 3 {
		t.Fatalf("hierarchy subscriber calls=%d", hier.calls.Load())
	}

	if n := len(s.Subscribers(reflect.TypeFor[dog]())); n != 2 {
		t.Fatalf("want 2 subscribers for dog, got %d", n)
	}
}

func Test_DuplicateSubscriptionIsIdempotent(t *testing.T) {
	s := eventservice.New()
	sub := &countingSub{}

	if !s.SubscribeTopicStrong("a", sub) {
		t.Fatalf("first subscribe refused")
	}

	if s.SubscribeTopicStrong("a", sub) {
		t.Fatalf("second subscribe must be refused")
	}

	if !s.SubscribeTopicStrong("b", sub) {
		t.Fatalf("other topic must be accepted")
	}

	_ = s.PublishTopic(t.Context(), "a", nil)

	if sub.calls.Load() != 1 {
		t.Fatalf("calls=%d", sub.calls.Load())
	}

	if s.Count() != 2 {
		t.Fatalf("count=%d", s.Count())
	}
}

func Test_TopicAndPattern(t *testing.T) {
	s := eventservice.New()

	topic := &countingSub{}
	pattern := &countingSub{}

	s.SubscribeTopicStrong("foo.bar", topic)
	s.SubscribePatternStrong(regexp.MustCompile(`foo\..*`), pattern)

	for _, tp := range []string{"foo.bar", "xfoo.bar", "foo", "foo.baz"} {
		if err := s.PublishTopic(t.Context(), tp, tp); err != nil {
			t.Fatalf("publish %s: %v", tp, err)
		}
	}

	if topic.calls.Load() != 1 {
		t.Fatalf("topic calls=%d", topic.calls.Load())
	}

	if pattern.calls.Load() != 2 {
		t.Fatalf("pattern calls=%d", pattern.calls.Load())
	}

	if n := len(s.TopicSubscribers("foo.bar")); n != 2 {
		t.Fatalf("topic subscribers=%d", n)
	}
}

func Test_ErrorsAreJoined(t *testing.T) {
	s := eventservice.New()
	e1 := errors.New("one")
	e2 := errors.New("two")

	s.SubscribeTopicStrong("t", &countingSub{err: e1})
	s.SubscribeTopicStrong("t", &countingSub{err: e2})

	ok := &countingSub{}
	s.SubscribeTopicStrong("t", ok)

	err := s.PublishTopic(t.Context(), "t", 1)
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("want joined errors, got %v", err)
	}

	if ok.calls.Load() != 1 {
		t.Fatalf("later subscribers must still run")
	}
}

func Test_ReleasedTargetsAreDropped(t *testing.T) {
	s := eventservice.New()

	strong := &mortalSub{}
	strong.alive.Store(true)

	weak := &mortalSub{}
	weak.alive.Store(true)

	s.SubscribeTopicStrong("t", strong)
	s.SubscribeTopic("t", weak)

	_ = s.PublishTopic(t.Context(), "t", nil)

	strong.alive.Store(false)
	weak.alive.Store(false)

	if err := s.PublishTopic(t.Context(), "t", nil); err != nil {
		t.Fatalf("released targets must not fail publish: %v", err)
	}

	if weak.calls.Load() != 1 {
		t.Fatalf("borrowed registration must be pruned before delivery, calls=%d", weak.calls.Load())
	}

	if s.Count() != 0 {
		t.Fatalf("both registrations should be gone, count=%d", s.Count())
	}
}

func Test_ResubscribeReplacesReleased(t *testing.T) {
	s := eventservice.New()

	old := &keyedSub{key: "k", mortalSub: &mortalSub{}}
	old.alive.Store(true)

	if !s.SubscribeTopicStrong("t", old) {
		t.Fatalf("first subscribe refused")
	}

	live := &keyedSub{key: "k", mortalSub: &mortalSub{}}
	live.alive.Store(true)

	if s.SubscribeTopicStrong("t", live) {
		t.Fatalf("equal live subscription must be a duplicate")
	}

	old.alive.Store(false)

	if !s.SubscribeTopicStrong("t", live) {
		t.Fatalf("released registration must not block an equal subscription")
	}

	if s.Count() != 1 {
		t.Fatalf("released registration should be replaced, count=%d", s.Count())
	}

	if err := s.PublishTopic(t.Context(), "t", nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if live.calls.Load() != 1 || old.calls.Load() != 0 {
		t.Fatalf("want only the new subscription called, live=%d old=%d", live.calls.Load(), old.calls.Load())
	}
}

func Test_Unsubscribe(t *testing.T) {
	s := eventservice.New()
	sub := &countingSub{}

	s.SubscribeStrong(reflect.TypeFor[dog](), sub)
	s.SubscribeTopicStrong("t", sub)
	s.SubscribePatternStrong(regexp.MustCompile("t.*"), sub)

	if n := s.Unsubscribe(sub); n != 3 {
		t.Fatalf("removed=%d", n)
	}

	if s.Unsubscribe(sub) != 0 || s.Unsubscribe(nil) != 0 {
		t.Fatalf("nothing left to remove")
	}
}

func Test_FuncSubscribersNeverCollide(t *testing.T) {
	s := eventservice.New()

	var calls atomic.Int32

	f := event.EventSubscriberFunc(func(ctx context.Context, e any) error {
		calls.Add(1)
		return nil
	})

	s.SubscribeStrong(reflect.TypeFor[dog](), f)
	s.SubscribeStrong(reflect.TypeFor[dog](), f)

	_ = s.Publish(t.Context(), dog{})

	if calls.Load() != 2 {
		t.Fatalf("func subscribers are not comparable and register twice, calls=%d", calls.Load())
	}
}

func Test_InvalidArguments(t *testing.T) {
	s := eventservice.New()

	if s.SubscribeStrong(nil, &countingSub{}) || s.SubscribeTopicStrong("", &countingSub{}) ||
		s.SubscribePatternStrong(nil, &countingSub{}) || s.SubscribeTopicStrong("t", nil) {
		t.Fatalf("invalid subscriptions must be refused")
	}

	var nilSub *countingSub
	if s.SubscribeExactStrong(reflect.TypeFor[dog](), nilSub) {
		t.Fatalf("typed nil subscriber must be refused")
	}

	if err := s.Publish(t.Context(), nil); !errors.Is(err, berr.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}

	if err := s.PublishTopic(t.Context(), "", 1); !errors.Is(err, berr.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}

func Test_ClosedService(t *testing.T) {
	s := eventservice.New()
	s.SubscribeTopicStrong("t", &countingSub{})

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := s.PublishTopic(t.Context(), "t", 1); !errors.Is(err, berr.ErrServiceClosed) {
		t.Fatalf("want ErrServiceClosed, got %v", err)
	}

	if err := s.Publish(t.Context(), dog{}); !errors.Is(err, berr.ErrServiceClosed) {
		t.Fatalf("want ErrServiceClosed, got %v", err)
	}

	if s.Count() != 0 {
		t.Fatalf("count=%d", s.Count())
	}
}

func Test_ParallelDelivery(t *testing.T) {
	s := eventservice.New(eventservice.WithParallelDelivery(2))

	subs := make([]*countingSub, 5)
	for i := range subs {
		subs[i] = &countingSub{}
		s.SubscribeStrong(reflect.TypeFor[animal](), subs[i])
	}

	boom := errors.New("boom")
	s.SubscribeStrong(reflect.TypeFor[animal](), &countingSub{err: boom})

	if err := s.Publish(t.Context(), cat{}); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	for i, sub := range subs {
		if sub.calls.Load() != 1 {
			t.Fatalf("sub %d calls=%d", i, sub.calls.Load())
		}
	}
}

func Test_Registrations(t *testing.T) {
	s := eventservice.New()
	s.SubscribeExact(reflect.TypeFor[dog](), &countingSub{})
	s.SubscribePatternStrong(regexp.MustCompile("a.*"), &countingSub{})

	regs := s.Registrations()
	if len(regs) != 2 {
		t.Fatalf("regs=%d", len(regs))
	}

	seen := map[event.Kind]eventservice.Registration{}
	for _, r := range regs {
		if r.ID == "" {
			t.Fatalf("registration without id: %+v", r)
		}

		seen[r.Kind] = r
	}

	if r := seen[event.TypeBased]; !r.Exact || !r.Borrowed || r.Target != "eventservice_test.dog" {
		t.Fatalf("type registration: %+v", r)
	}

	if r := seen[event.TopicPattern]; r.Exact || r.Borrowed || r.Target != "a.*" {
		t.Fatalf("pattern registration: %+v", r)
	}
}
