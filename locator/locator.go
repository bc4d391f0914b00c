package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/eventservice"
)

// Built-in service kinds.
const (
	KindSequential = "sequential"
	KindParallel   = "parallel"
)

// Locator is a registry of named event services. It is safe for concurrent use.
type Locator struct {
	mu       sync.RWMutex
	services map[string]event.Service
	kinds    map[string]event.Factory
	defKind  string
	logger   *slog.Logger

	// boot serializes creation of the default bus.
	boot sync.Mutex
}

// Option configures a Locator.
type Option func(*Locator)

// New constructs a Locator with the built-in kinds registered.
func New(opts ...Option) *Locator {
	l := &Locator{
		services: make(map[string]event.Service),
		kinds: map[string]event.Factory{
			KindSequential: func() (event.Service, error) { return eventservice.New(), nil },
			KindParallel: func() (event.Service, error) {
				return eventservice.New(eventservice.WithParallelDelivery(0)), nil
			},
		},
		defKind: KindSequential,
		logger:  slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		o(l)
	}

	return l
}

// WithLogger sets the locator logger. A nil logger keeps the default discard logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Locator) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithKind registers (or replaces) a service kind.
func WithKind(name string, f event.Factory) Option {
	return func(l *Locator) { l.kinds[name] = f }
}

// WithDefaultKind selects the kind used for the default bus and for creations that
// name no kind. An unknown name is only reported when a service is first created.
func WithDefaultKind(name string) Option {
	return func(l *Locator) {
		if name != "" {
			l.defKind = name
		}
	}
}

// DefaultKind returns the kind used when none is named.
func (l *Locator) DefaultKind() string { return l.defKind }

// Lookup returns the service registered under name.
func (l *Locator) Lookup(name string) (event.Service, bool) { //nolint:ireturn
	l.mu.RLock()
	defer l.mu.RUnlock()

	svc, ok := l.services[name]

	return svc, ok
}

// Register binds svc to name. Binding a taken name fails with ErrServiceExists.
func (l *Locator) Register(name string, svc event.Service) error {
	if name == "" || svc == nil {
		return fmt.Errorf("register service %q: %w", name, berr.ErrConfiguration)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.services[name]; ok {
		return fmt.Errorf("register service %q: %w", name, berr.ErrServiceExists)
	}

	l.services[name] = svc
	l.logger.Debug("event service registered", "name", name)

	return nil
}

// LookupOrCreate returns the service registered under name, creating one of the
// given kind when there is none. An empty kind means the default kind. The default
// bus name always goes through DefaultBus and ignores kind.
//
// Every factory failure is reported as ErrServiceInstantiation. When another caller
// registers name first, the instance created here is closed and the winner returned.
func (l *Locator) LookupOrCreate(name, kind string) (event.Service, error) { //nolint:ireturn
	if svc, ok := l.Lookup(name); ok {
		return svc, nil
	}

	switch name {
	case "":
		return nil, fmt.Errorf("create service: empty name: %w", berr.ErrConfiguration)
	case event.DefaultBusName:
		return l.DefaultBus()
	}

	if kind == "" {
		kind = l.defKind
	}

	return l.createOrJoin(name, kind)
}

// DefaultBus returns the service registered under event.DefaultBusName, creating it
// with the default kind on first use.
func (l *Locator) DefaultBus() (event.Service, error) { //nolint:ireturn
	if svc, ok := l.Lookup(event.DefaultBusName); ok {
		return svc, nil
	}

	l.boot.Lock()
	defer l.boot.Unlock()

	if svc, ok := l.Lookup(event.DefaultBusName); ok {
		return svc, nil
	}

	return l.createOrJoin(event.DefaultBusName, l.defKind)
}

func (l *Locator) createOrJoin(name, kind string) (event.Service, error) { //nolint:ireturn
	created, err := l.create(kind)
	if err != nil {
		return nil, fmt.Errorf("create service %q: %w", name, err)
	}

	err = l.Register(name, created)
	if err == nil {
		l.logger.Info("event service created", "name", name, "kind", kind)
		return created, nil
	}

	if !errors.Is(err, berr.ErrServiceExists) {
		return nil, err
	}

	l.logger.Warn("event service creation race lost; discarding instance", "name", name, "kind", kind)

	if cerr := created.Close(); cerr != nil {
		l.logger.Warn("close discarded event service", "name", name, "err", cerr)
	}

	svc, ok := l.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("create service %q: %w", name, berr.ErrServiceNotFound)
	}

	return svc, nil
}

// Names returns the registered service names in sorted order.
func (l *Locator) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.services))
	for n := range l.services {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

// Close closes and forgets every registered service.
func (l *Locator) Close() error {
	l.mu.Lock()
	services := l.services
	l.services = make(map[string]event.Service)
	l.mu.Unlock()

	var errs []error

	for name, svc := range services {
		if err := svc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close service %q: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func (l *Locator) create(kind string) (svc event.Service, err error) { //nolint:ireturn
	l.mu.RLock()
	f, ok := l.kinds[kind]
	l.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown kind %q: %w", kind, berr.ErrServiceInstantiation)
	}

	if f == nil {
		return nil, fmt.Errorf("kind %q has no factory: %w", kind, berr.ErrServiceInstantiation)
	}

	defer func() {
		if r := recover(); r != nil {
			svc = nil
			err = fmt.Errorf("kind %q factory panicked: %v: %w", kind, r, berr.ErrServiceInstantiation)
		}
	}()

	svc, err = f()
	if err != nil {
		return nil, fmt.Errorf("kind %q: %w: %w", kind, berr.ErrServiceInstantiation, err)
	}

	if isNil(svc) {
		return nil, fmt.Errorf("kind %q factory returned nil: %w", kind, berr.ErrServiceInstantiation)
	}

	return svc, nil
}

func isNil(svc event.Service) bool {
	if svc == nil {
		return true
	}

	v := reflect.ValueOf(svc)

	return v.Kind() == reflect.Pointer && v.IsNil()
}
