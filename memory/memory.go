package memory

import (
	"log/slog"

	"github.com/next-trace/scg-event-service/config"
	"github.com/next-trace/scg-event-service/locator"
	"github.com/next-trace/scg-event-service/resolver"
)

// New constructs a resolver over a fresh in-process locator and returns it along
// with a cleanup function that closes every service the locator holds.
func New(opts ...resolver.Option) (*resolver.Resolver, func()) {
	r := resolver.New(locator.New(), opts...)
	cleanup := func() { _ = r.Locator().Close() }

	return r, cleanup
}

// FromConfig builds the locator and resolver cfg describes and bootstraps the
// default bus, so a misconfigured default kind is reported here.
func FromConfig(cfg config.Config, logger *slog.Logger) (*resolver.Resolver, func(), error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	loc := locator.New(append(cfg.LocatorOptions(), locator.WithLogger(logger))...)
	r := resolver.New(loc, append(cfg.ResolverOptions(), resolver.WithLogger(logger))...)

	if _, err := loc.DefaultBus(); err != nil {
		return nil, nil, err
	}

	cleanup := func() { _ = loc.Close() }

	return r, cleanup, nil
}
