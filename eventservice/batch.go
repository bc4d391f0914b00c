package eventservice

import (
	"context"
	"errors"
)

// revive:disable:max-public-structs
// BatchOptions controls PublishBatch execution behavior.
// OnProgress is called after each event completes (success or failure) with done and total.
// OnError is called when publishing an event returns an error with its index, the event, and the error.
type BatchOptions struct {
	OnProgress func(done, total int)
	OnError    func(index int, e any, err error)
}

// revive:enable:max-public-structs

// BatchOpt configures BatchOptions.
type BatchOpt func(*BatchOptions)

// WithBatchProgress sets the progress callback.
func WithBatchProgress(fn func(done, total int)) BatchOpt {
	return func(o *BatchOptions) { o.OnProgress = fn }
}

// WithBatchOnError sets the error callback.
func WithBatchOnError(fn func(index int, e any, err error)) BatchOpt {
	return func(o *BatchOptions) { o.OnError = fn }
}

// PublishBatch publishes the provided events sequentially.
// It stops when ctx is done and returns every publish error joined.
func (s *Service) PublishBatch(ctx context.Context, events []any, opts ...BatchOpt) error {
	var o BatchOptions
	for _, f := range opts {
		f(&o)
	}

	total := len(events)

	var errs []error

	for i, e := range events {
		if err := ctx.Err(); err != nil { // canceled or deadline exceeded
			return errors.Join(append(errs, err)...)
		}

		err := s.Publish(ctx, e)
		if err != nil {
			if o.OnError != nil {
				o.OnError(i, e, err)
			}

			errs = append(errs, err)
		}

		if o.OnProgress != nil {
			o.OnProgress(i+1, total)
		}
	}

	return errors.Join(errs...)
}
