package proxy_test

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/lifetime"
	"github.com/next-trace/scg-event-service/proxy"
)

type shape interface{ Area() int }

type square struct{ Side int }

func (s square) Area() int { return s.Side * s.Side }

type recorder struct {
	shapes []shape
	topics []string
	data   []any
}

func (r *recorder) OnShape(s shape)                              { r.shapes = append(r.shapes, s) }
func (r *recorder) OnSquare(ctx context.Context, s square) error { return nil }

func (r *recorder) OnTopic(topic string, data any) {
	r.topics = append(r.topics, topic)
	r.data = append(r.data, data)
}

func (r *recorder) OnCount(topic string, n int) error {
	r.topics = append(r.topics, topic)
	return nil
}

func TestTypeProxyInvokeAndMatch(t *testing.T) {
	r := &recorder{}

	p, err := proxy.NewType(lifetime.Owned(r), r.OnShape, nil, reflect.TypeFor[shape](), false)
	require.NoError(t, err)

	require.NoError(t, p.OnEvent(t.Context(), square{Side: 2}))
	require.Len(t, r.shapes, 1)
	assert.Equal(t, 4, r.shapes[0].Area())

	assert.True(t, p.Matches(reflect.TypeFor[square]()))
	assert.True(t, p.Matches(reflect.TypeFor[shape]()))
	assert.False(t, p.Matches(reflect.TypeFor[int]()))
	assert.False(t, p.Matches(nil))
	assert.True(t, p.IsAlive())
	assert.Equal(t, event.Strong, p.Strength())

	exact, err := proxy.NewType(lifetime.Owned(r), r.OnShape, nil, reflect.TypeFor[shape](), true)
	require.NoError(t, err)
	assert.False(t, exact.Matches(reflect.TypeFor[square]()))
	assert.True(t, exact.Matches(reflect.TypeFor[shape]()))
}

func TestTypeProxyRejectsBadShapes(t *testing.T) {
	r := &recorder{}

	_, err := proxy.NewType(lifetime.Owned(r), r.OnSquare, nil, reflect.TypeFor[shape](), false)
	require.ErrorIs(t, err, berr.ErrConfiguration, "square param cannot take every shape")

	_, err = proxy.NewType(lifetime.Owned(r), r.OnTopic, nil, reflect.TypeFor[string](), false)
	require.ErrorIs(t, err, berr.ErrConfiguration, "two payload params for a type proxy")

	_, err = proxy.NewType(lifetime.Owned(r), r.OnShape, nil, nil, false)
	require.ErrorIs(t, err, berr.ErrConfiguration)

	_, err = proxy.NewType(nil, r.OnShape, nil, reflect.TypeFor[shape](), false)
	require.ErrorIs(t, err, berr.ErrConfiguration)
}

func TestTypeProxyPayloadMismatch(t *testing.T) {
	r := &recorder{}

	p, err := proxy.NewType(lifetime.Owned(r), r.OnSquare, nil, reflect.TypeFor[square](), true)
	require.NoError(t, err)
	require.ErrorIs(t, p.OnEvent(t.Context(), "square"), berr.ErrHandlerTypeMismatch)
}

func TestWeakProxyStopsAfterRelease(t *testing.T) {
	arena := lifetime.NewArena()
	r := &recorder{}

	ref, err := arena.Borrow(r)
	require.NoError(t, err)

	p, err := proxy.NewTopic(ref, r.OnTopic, nil, "news")
	require.NoError(t, err)
	require.True(t, p.IsAlive())
	assert.Equal(t, event.Weak, p.Strength())

	require.NoError(t, p.OnTopicEvent(t.Context(), "news", 1))
	require.True(t, arena.Release(r))

	assert.False(t, p.IsAlive())
	require.ErrorIs(t, p.OnTopicEvent(t.Context(), "news", 2), berr.ErrTargetReleased)
	assert.Equal(t, []string{"news"}, r.topics)

	_, ok := p.Target()
	assert.False(t, ok)
}

func TestProxyOnReleasedTargetFails(t *testing.T) {
	arena := lifetime.NewArena()
	r := &recorder{}

	ref, err := arena.Borrow(r)
	require.NoError(t, err)
	arena.Release(r)

	_, err = proxy.NewTopic(ref, r.OnTopic, nil, "news")
	require.ErrorIs(t, err, berr.ErrTargetReleased)
}

func TestTopicProxy(t *testing.T) {
	r := &recorder{}

	p, err := proxy.NewTopic(lifetime.Owned(r), r.OnCount, nil, "Orders")
	require.NoError(t, err)

	assert.True(t, p.Matches("Orders"))
	assert.False(t, p.Matches("orders"), "topics are case-sensitive")
	assert.False(t, p.Matches("Orders.created"))

	require.NoError(t, p.OnTopicEvent(t.Context(), "Orders", 3))
	require.ErrorIs(t, p.OnTopicEvent(t.Context(), "Orders", "three"), berr.ErrHandlerTypeMismatch)

	_, err = proxy.NewTopic(lifetime.Owned(r), r.OnCount, nil, "")
	require.ErrorIs(t, err, berr.ErrConfiguration)

	_, err = proxy.NewTopic(lifetime.Owned(r), r.OnShape, nil, "Orders")
	require.ErrorIs(t, err, berr.ErrConfiguration)

	_, err = proxy.NewTopic(lifetime.Owned(r), func(n int, data any) {}, nil, "Orders")
	require.ErrorIs(t, err, berr.ErrConfiguration, "first parameter must take the topic")
}

func TestPatternProxyFullMatch(t *testing.T) {
	r := &recorder{}

	// unanchored on purpose: the proxy must still full-match
	p, err := proxy.NewPattern(lifetime.Owned(r), r.OnTopic, nil, regexp.MustCompile(`foo\..*`))
	require.NoError(t, err)

	assert.True(t, p.Matches("foo.bar"))
	assert.False(t, p.Matches("xfoo.bar"))
	assert.False(t, p.Matches("foo"))

	alt, err := proxy.NewPattern(lifetime.Owned(r), r.OnTopic, nil, regexp.MustCompile(`a|ab`))
	require.NoError(t, err)
	assert.True(t, alt.Matches("ab"))

	_, err = proxy.NewPattern(lifetime.Owned(r), r.OnTopic, nil, nil)
	require.ErrorIs(t, err, berr.ErrConfiguration)
}

func TestEquality(t *testing.T) {
	r1 := &recorder{}
	r2 := &recorder{}

	a, err := proxy.NewTopic(lifetime.Owned(r1), r1.OnTopic, nil, "t")
	require.NoError(t, err)
	b, err := proxy.NewTopic(lifetime.Owned(r1), r1.OnTopic, nil, "t")
	require.NoError(t, err)
	c, err := proxy.NewTopic(lifetime.Owned(r2), r2.OnTopic, nil, "t")
	require.NoError(t, err)
	d, err := proxy.NewTopic(lifetime.Owned(r1), r1.OnTopic, nil, "u")
	require.NoError(t, err)
	e, err := proxy.NewTopic(lifetime.Owned(r1), r1.OnCount, nil, "t")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "different target")
	assert.False(t, a.Equal(d), "different topic")
	assert.False(t, a.Equal(e), "different method")
	assert.False(t, a.Equal(nil))

	pa, err := proxy.NewPattern(lifetime.Owned(r1), r1.OnTopic, nil, regexp.MustCompile("t.*"))
	require.NoError(t, err)
	pb, err := proxy.NewPattern(lifetime.Owned(r1), r1.OnTopic, nil, regexp.MustCompile("t.*"))
	require.NoError(t, err)
	assert.True(t, pa.Equal(pb))
	assert.False(t, pa.Equal(a))

	ta, err := proxy.NewType(lifetime.Owned(r1), r1.OnShape, nil, reflect.TypeFor[shape](), false)
	require.NoError(t, err)
	tb, err := proxy.NewType(lifetime.Owned(r1), r1.OnShape, nil, reflect.TypeFor[shape](), true)
	require.NoError(t, err)
	assert.False(t, ta.Equal(tb), "exact flag is part of the key")
}

// labels is not comparable.
type labels struct{ names []string }

func (labels) OnTopic(topic string, data any) {}

func TestEqualityOfNonComparableTargets(t *testing.T) {
	l1 := labels{names: []string{"a"}}
	l2 := labels{names: []string{"a"}}
	l3 := labels{names: []string{"b"}}

	a, err := proxy.NewTopic(lifetime.Owned(l1), l1.OnTopic, nil, "t")
	require.NoError(t, err)
	b, err := proxy.NewTopic(lifetime.Owned(l2), l2.OnTopic, nil, "t")
	require.NoError(t, err)
	c, err := proxy.NewTopic(lifetime.Owned(l3), l3.OnTopic, nil, "t")
	require.NoError(t, err)

	r := &recorder{}
	d, err := proxy.NewTopic(lifetime.Owned(r), r.OnTopic, nil, "t")
	require.NoError(t, err)

	assert.True(t, a.Equal(b), "equal values are the same target")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, d.Equal(a))
}

func TestHandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")

	p, err := proxy.NewTopic(lifetime.Owned("static"), func(ctx context.Context, topic string, data any) error {
		return boom
	}, nil, "t")
	require.NoError(t, err)
	require.ErrorIs(t, p.OnTopicEvent(t.Context(), "t", nil), boom)
}
