package descriptor_test

import (
	"context"
	"errors"
	"reflect"
	"regexp/syntax"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/descriptor"
)

type foo struct{ N int }

type listener struct{}

func (listener) OnFoo(f foo)                                            {}
func (listener) OnFooCtx(ctx context.Context, f foo) error              { return nil }
func (listener) OnNothing()                                             {}
func (listener) OnTopic(topic string, data any)                         {}
func (listener) Subscriptions() []descriptor.Declaration                { return nil }
func (listener) OnTyped(ctx context.Context, topic string, n int) error { return nil }

func TestInferEventTypeFromParameter(t *testing.T) {
	var l listener

	for _, h := range []any{l.OnFoo, l.OnFooCtx} {
		d, err := descriptor.Validate(descriptor.Event(h))
		require.NoError(t, err)
		assert.Equal(t, reflect.TypeFor[foo](), d.EventType)
		assert.Equal(t, event.TypeBased, d.Kind)
		assert.Equal(t, event.DefaultBusName, d.ServiceName)
		assert.False(t, d.Exact)
		assert.Equal(t, event.Strong, d.Strength)
	}
}

func TestInferWithoutParameterFails(t *testing.T) {
	var l listener

	_, err := descriptor.Validate(descriptor.Event(l.OnNothing))
	require.ErrorIs(t, err, berr.ErrConfiguration)
	assert.Contains(t, err.Error(), "must declare one parameter")
}

func TestExplicitEventType(t *testing.T) {
	var l listener

	d, err := descriptor.Validate(descriptor.Event(l.OnFoo, descriptor.WithEventType(reflect.TypeFor[int]()), descriptor.Exact()))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[int](), d.EventType)
	assert.True(t, d.Exact)

	_, err = descriptor.Validate(descriptor.Event(l.OnFoo, descriptor.WithEventType(nil)))
	require.ErrorIs(t, err, berr.ErrConfiguration)
}

func TestEventOfUsesTypeParameter(t *testing.T) {
	d, err := descriptor.Validate(descriptor.EventOf(func(ctx context.Context, e error) error { return nil },
		descriptor.Weak(), descriptor.OnService("errors"), descriptor.AutoCreate("parallel")))
	require.NoError(t, err)

	assert.Equal(t, reflect.TypeFor[error](), d.EventType)
	assert.Equal(t, event.Weak, d.Strength)
	assert.Equal(t, "errors", d.ServiceName)
	assert.Equal(t, "parallel", d.AutoCreate)
	assert.Equal(t, "error", d.Target())
}

func TestTopicRequiresTopic(t *testing.T) {
	var l listener

	_, err := descriptor.Validate(descriptor.Topic("", l.OnTopic))
	require.ErrorIs(t, err, berr.ErrConfiguration)

	d, err := descriptor.Validate(descriptor.TopicOf("orders.created", l.OnTyped))
	require.NoError(t, err)
	assert.Equal(t, "orders.created", d.Target())
	assert.Equal(t, event.TopicExact, d.Kind)
}

func TestTopicPatternIsAnchored(t *testing.T) {
	var l listener

	d, err := descriptor.Validate(descriptor.TopicPattern(`foo\..*`, l.OnTopic))
	require.NoError(t, err)

	assert.True(t, d.Pattern.MatchString("foo.bar"))
	assert.False(t, d.Pattern.MatchString("xfoo.bar"))
	assert.False(t, d.Pattern.MatchString("foo"))
	assert.False(t, d.Pattern.MatchString("foo.bar\nbaz"))
	assert.Equal(t, `foo\..*`, d.Target())
}

func TestTopicPatternAlternationStaysAnchored(t *testing.T) {
	p, err := descriptor.Compile("a|b")
	require.NoError(t, err)

	assert.True(t, p.MatchString("a"))
	assert.False(t, p.MatchString("ab"))
}

func TestTopicPatternErrors(t *testing.T) {
	var l listener

	_, err := descriptor.Validate(descriptor.TopicPattern("", l.OnTopic))
	require.ErrorIs(t, err, berr.ErrConfiguration)

	_, err = descriptor.Validate(descriptor.TopicPattern("foo(", l.OnTopic))
	require.ErrorIs(t, err, berr.ErrPatternCompilation)

	var syn *syntax.Error
	require.True(t, errors.As(err, &syn), "regexp cause must be kept: %v", err)
}

func TestExactOnlyForTypes(t *testing.T) {
	var l listener

	_, err := descriptor.Validate(descriptor.Topic("t", l.OnTopic, descriptor.Exact()))
	require.ErrorIs(t, err, berr.ErrConfiguration)
}

func TestNilHandler(t *testing.T) {
	_, err := descriptor.Validate(descriptor.Topic("t", nil))
	require.ErrorIs(t, err, berr.ErrConfiguration)

	_, err = descriptor.Validate(descriptor.EventOf[foo](nil))
	require.ErrorIs(t, err, berr.ErrConfiguration)
}

func TestScan(t *testing.T) {
	assert.Nil(t, descriptor.Scan(nil))
	assert.Nil(t, descriptor.Scan(struct{}{}))
	assert.Nil(t, descriptor.Scan(listener{}))
	assert.Nil(t, descriptor.Scan((*listener)(nil)))

	p := provider{descriptor.Topic("a", func(string, any) {}), descriptor.Topic("b", func(string, any) {})}
	assert.Len(t, descriptor.Scan(p), 2)
}

type provider []descriptor.Declaration

func (p provider) Subscriptions() []descriptor.Declaration { return p }

func TestDeclarationError(t *testing.T) {
	err := &descriptor.DeclarationError{Index: 2, Kind: event.TopicPattern, Candidate: "*app.Orders", Err: berr.ErrPatternCompilation}

	require.ErrorIs(t, err, berr.ErrPatternCompilation)
	assert.Equal(t, "resolve topic-pattern subscription #2 on *app.Orders: eventservice.pattern_compilation", err.Error())
}
