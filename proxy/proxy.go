package proxy

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/internal/shape"
	"github.com/next-trace/scg-event-service/lifetime"
)

// base is the part every proxy variant shares: the target reference, the handler
// and the owning service.
type base struct {
	ref     lifetime.Ref
	id      any
	code    uintptr
	handler atomic.Pointer[shape.Shape]
	service event.Service
}

func (b *base) init(ref lifetime.Ref, handler any, svc event.Service, arity int) error {
	if ref == nil {
		return fmt.Errorf("proxy: nil target reference: %w", berr.ErrConfiguration)
	}

	target, ok := ref.Target()
	if !ok {
		return fmt.Errorf("proxy: target already released: %w", berr.ErrTargetReleased)
	}

	s, err := shape.Of(handler)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}

	if s.Arity() != arity {
		return fmt.Errorf("proxy: handler %s takes %d payload parameters, want %d: %w",
			s, s.Arity(), arity, berr.ErrConfiguration)
	}

	b.ref = ref
	b.id = identity(target)
	b.code = s.Pointer()
	b.service = svc
	b.handler.Store(&s)

	return nil
}

// IsAlive reports whether the target can still be reached.
// It is always true for strong proxies.
func (b *base) IsAlive() bool {
	return b.handler.Load() != nil && b.ref.Alive()
}

// Strength returns the proxy's reference strength.
func (b *base) Strength() event.ReferenceStrength { return b.ref.Strength() }

// Service returns the event service the proxy was built for.
func (b *base) Service() event.Service { return b.service } //nolint:ireturn

// Target returns the target object while it is alive.
func (b *base) Target() (any, bool) {
	if b.handler.Load() == nil {
		return nil, false
	}

	return b.ref.Target()
}

func (b *base) invoke(ctx context.Context, args ...any) error {
	s := b.handler.Load()
	if s == nil || !b.ref.Alive() {
		// drop the handler so a released owner is no longer reachable through it
		b.handler.Store(nil)
		return fmt.Errorf("invoke proxy: %w", berr.ErrTargetReleased)
	}

	return s.Call(ctx, args...)
}

func (b *base) same(o *base) bool {
	if b.code != o.code {
		return false
	}

	bv, bok := b.id.(byValue)
	ov, ook := o.id.(byValue)

	if bok || ook {
		return bok && ook && reflect.DeepEqual(bv.v, ov.v)
	}

	return b.id == o.id
}

// byValue identifies a target whose type is not comparable. Two such targets are
// the same when they are deeply equal, as comparable values are when ==.
type byValue struct{ v any }

// identity returns a comparable key that is equal for the same target object.
func identity(target any) any {
	if target == nil {
		return nil
	}

	v := reflect.ValueOf(target)
	switch v.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan, reflect.Map, reflect.Func, reflect.Slice:
		return struct {
			t reflect.Type
			p uintptr
		}{v.Type(), v.Pointer()}
	default:
		if v.Type().Comparable() {
			return target
		}

		return byValue{v: target}
	}
}
