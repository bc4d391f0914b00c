package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/descriptor"
	"github.com/next-trace/scg-event-service/lifetime"
	"github.com/next-trace/scg-event-service/locator"
	"github.com/next-trace/scg-event-service/proxy"
)

// Resolver registers the subscriptions declared by candidates.
type Resolver struct {
	loc      *locator.Locator
	arena    *lifetime.Arena
	declared bool
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// New constructs a Resolver that finds services through loc.
func New(loc *locator.Locator, opts ...Option) *Resolver {
	r := &Resolver{
		loc:    loc,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		o(r)
	}

	if r.loc == nil {
		r.loc = locator.New(locator.WithLogger(r.logger))
	}

	if r.arena == nil {
		r.arena = lifetime.NewArena()
	}

	return r
}

// WithLogger sets the resolver logger. A nil logger keeps the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithArena shares an arena between resolvers.
func WithArena(a *lifetime.Arena) Option {
	return func(r *Resolver) { r.arena = a }
}

// WithDeclaredStrength registers Weak declarations through the weak service
// disciplines. Without it every proxy is registered through the Strong calls,
// although Weak proxies still borrow their target.
func WithDeclaredStrength() Option {
	return func(r *Resolver) { r.declared = true }
}

// Arena returns the arena Weak declarations borrow from.
func (r *Resolver) Arena() *lifetime.Arena { return r.arena }

// Locator returns the service locator.
func (r *Resolver) Locator() *locator.Locator { return r.loc }

// Resolve registers every subscription candidate declares. A nil candidate, or one
// that is not a descriptor.Provider, declares nothing.
//
// Resolving the same candidate twice does not duplicate its subscriptions.
func (r *Resolver) Resolve(candidate any) error {
	decls := descriptor.Scan(candidate)
	if len(decls) == 0 {
		return nil
	}

	name := fmt.Sprintf("%T", candidate)

	var errs []error

	for i, decl := range decls {
		if err := r.resolveOne(candidate, decl); err != nil {
			r.logger.Warn("subscription not resolved", "candidate", name, "index", i, "kind", decl.Kind().String(), "err", err)
			errs = append(errs, &descriptor.DeclarationError{Index: i, Kind: decl.Kind(), Candidate: name, Err: err})
		}
	}

	return errors.Join(errs...)
}

// Release ends the borrow of candidate. Proxies of its Weak declarations stop
// delivering and are dropped by their services. It reports whether candidate was
// borrowed.
func (r *Resolver) Release(candidate any) bool {
	return r.arena.Release(candidate)
}

func (r *Resolver) resolveOne(candidate any, decl descriptor.Declaration) (err error) {
	d, err := descriptor.Validate(decl)
	if err != nil {
		return err
	}

	svc, err := r.loc.LookupOrCreate(d.ServiceName, d.AutoCreate)
	if err != nil {
		return err
	}

	ref, fresh, err := r.reference(candidate, d.Strength)
	if err != nil {
		return err
	}

	if fresh {
		defer func() {
			// a failed declaration leaves no borrow behind
			if err != nil {
				r.arena.Release(candidate)
			}
		}()
	}

	weak := r.declared && d.Strength == event.Weak

	var added bool

	switch d.Kind {
	case event.TypeBased:
		p, err := proxy.NewType(ref, d.Handler, svc, d.EventType, d.Exact)
		if err != nil {
			return err
		}

		added = subscribeType(svc, p, d.Exact, weak)
	case event.TopicExact:
		p, err := proxy.NewTopic(ref, d.Handler, svc, d.Topic)
		if err != nil {
			return err
		}

		if weak {
			added = svc.SubscribeTopic(d.Topic, p)
		} else {
			added = svc.SubscribeTopicStrong(d.Topic, p)
		}
	case event.TopicPattern:
		// Validate already compiled the source
		pattern := regexp.MustCompile(d.PatternSource)

		p, err := proxy.NewPattern(ref, d.Handler, svc, pattern)
		if err != nil {
			return err
		}

		if weak {
			added = svc.SubscribePattern(pattern, p)
		} else {
			added = svc.SubscribePatternStrong(pattern, p)
		}
	default:
		return fmt.Errorf("subscription kind %d: %w", d.Kind, berr.ErrConfiguration)
	}

	r.logger.Debug("subscription resolved",
		"service", d.ServiceName,
		"kind", d.Kind.String(),
		"target", d.Target(),
		"exact", d.Exact,
		"strength", d.Strength.String(),
		"weak_discipline", weak,
		"added", added,
	)

	return nil
}

// reference also reports whether a new arena slot was taken.
func (r *Resolver) reference(candidate any, s event.ReferenceStrength) (lifetime.Ref, bool, error) { //nolint:ireturn
	if s == event.Weak {
		return r.arena.Acquire(candidate)
	}

	return lifetime.Owned(candidate), false, nil
}

func subscribeType(svc event.Service, p *proxy.TypeProxy, exact, weak bool) bool {
	switch {
	case exact && weak:
		return svc.SubscribeExact(p.EventType(), p)
	case exact:
		return svc.SubscribeExactStrong(p.EventType(), p)
	case weak:
		return svc.Subscribe(p.EventType(), p)
	default:
		return svc.SubscribeStrong(p.EventType(), p)
	}
}
