package eventservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// ErrSubscriberPanic is matched by errors.Is for every PanicError.
var ErrSubscriberPanic = errors.New("subscriber panicked")

// PanicError wraps a panic raised by a subscriber.
type PanicError struct {
	// ID is the registration whose subscriber panicked.
	ID string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("subscriber %s panicked: %v", e.ID, e.Value)
}

// Is allows errors.Is to match PanicError with ErrSubscriberPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrSubscriberPanic
}

// Recover turns subscriber panics into *PanicError so one bad subscriber cannot take
// the publisher down.
func Recover() Middleware {
	return func(next func(ctx context.Context, d Delivery) error) func(ctx context.Context, d Delivery) error {
		return func(ctx context.Context, d Delivery) (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = &PanicError{ID: d.ID, Value: v, Stack: string(debug.Stack())}
				}
			}()

			return next(ctx, d)
		}
	}
}

// Logging records each delivery at debug level and failures at warn level.
func Logging(l *slog.Logger) Middleware {
	return func(next func(ctx context.Context, d Delivery) error) func(ctx context.Context, d Delivery) error {
		return func(ctx context.Context, d Delivery) error {
			start := time.Now()
			err := next(ctx, d)

			attrs := []any{"id", d.ID, "kind", d.Kind.String(), "topic", d.Topic, "elapsed", time.Since(start)}
			if err != nil {
				l.WarnContext(ctx, "event delivery failed", append(attrs, "err", err)...)
				return err
			}

			l.DebugContext(ctx, "event delivered", attrs...)

			return nil
		}
	}
}
