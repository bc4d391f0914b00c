// Package bridge forwards topic publications from an event service to an external
// broker.
//
// A Bridge is a descriptor.Provider: resolving it subscribes the bridge to every
// topic its pattern fully matches, and each matching publication is handed to the
// bridge's event.Forwarder (see the adapters packages).
package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/descriptor"
)

// Bridge forwards the publications of one topic pattern.
type Bridge struct {
	fwd     event.Forwarder
	pattern string
	opts    []descriptor.Option
	logger  *slog.Logger
}

var _ descriptor.Provider = (*Bridge)(nil)

// New returns a bridge forwarding every topic pattern matches to fwd. opts apply to
// the bridge's subscription, e.g. descriptor.OnService or descriptor.Weak.
func New(fwd event.Forwarder, pattern string, opts ...descriptor.Option) *Bridge {
	return &Bridge{fwd: fwd, pattern: pattern, opts: opts, logger: slog.New(slog.DiscardHandler)}
}

// WithLogger sets the logger used for failed forwards.
func (b *Bridge) WithLogger(l *slog.Logger) *Bridge {
	if l != nil {
		b.logger = l
	}

	return b
}

// Pattern returns the forwarded topic pattern.
func (b *Bridge) Pattern() string { return b.pattern }

// Subscriptions declares the bridge's single pattern subscription.
func (b *Bridge) Subscriptions() []descriptor.Declaration {
	var handler any
	if b.fwd != nil {
		handler = b.forward
	}

	return []descriptor.Declaration{descriptor.TopicPattern(b.pattern, handler, b.opts...)}
}

func (b *Bridge) forward(ctx context.Context, topic string, data any) error {
	if err := b.fwd.Forward(ctx, topic, data); err != nil {
		b.logger.WarnContext(ctx, "bridge forward failed", "pattern", b.pattern, "topic", topic, "err", err)
		return fmt.Errorf("bridge %q forward %q: %w", b.pattern, topic, err)
	}

	return nil
}
