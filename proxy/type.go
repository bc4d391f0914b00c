package proxy

import (
	"context"
	"fmt"
	"reflect"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/lifetime"
)

// TypeProxy delivers events matched by Go type.
type TypeProxy struct {
	base
	eventType reflect.Type
	exact     bool
}

var (
	_ event.EventSubscriber = (*TypeProxy)(nil)
	_ event.Liveness        = (*TypeProxy)(nil)
	_ event.Equaler         = (*TypeProxy)(nil)
)

// NewType builds a type-based proxy. The handler must take exactly one payload
// parameter that accepts eventType (and so every type assignable to it).
func NewType(ref lifetime.Ref, handler any, svc event.Service, eventType reflect.Type, exact bool) (*TypeProxy, error) {
	if eventType == nil {
		return nil, fmt.Errorf("type proxy: nil event type: %w", berr.ErrConfiguration)
	}

	p := &TypeProxy{eventType: eventType, exact: exact}
	if err := p.init(ref, handler, svc, 1); err != nil {
		return nil, err
	}

	if s := p.handler.Load(); !s.Accepts(0, eventType) {
		return nil, fmt.Errorf("type proxy: handler %s cannot accept %s: %w", s, eventType, berr.ErrConfiguration)
	}

	return p, nil
}

// OnEvent invokes the handler with the published event.
func (p *TypeProxy) OnEvent(ctx context.Context, e any) error { return p.invoke(ctx, e) }

// EventType returns the subscribed type.
func (p *TypeProxy) EventType() reflect.Type { return p.eventType }

// Exact reports whether only the exact type matches.
func (p *TypeProxy) Exact() bool { return p.exact }

// Matches reports whether an event of type t is delivered to this proxy.
func (p *TypeProxy) Matches(t reflect.Type) bool {
	if t == nil {
		return false
	}

	if p.exact {
		return t == p.eventType
	}

	return t.AssignableTo(p.eventType)
}

// Equal reports whether other wraps the same target, handler and match key.
func (p *TypeProxy) Equal(other any) bool {
	o, ok := other.(*TypeProxy)
	if !ok || o == nil {
		return false
	}

	return p.same(&o.base) && p.eventType == o.eventType && p.exact == o.exact
}

func (p *TypeProxy) String() string {
	mode := "hierarchy"
	if p.exact {
		mode = "exact"
	}

	return fmt.Sprintf("type proxy %s (%s, %s)", p.eventType, mode, p.Strength())
}
