package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
)

// TopicHeader carries the event topic when records share one Kafka topic.
const TopicHeader = "x-topic"

// Writer is a minimal Kafka-like writer interface.
// Users can adapt segmentio/kafka-go or any other client to this.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KeyFunc derives the record key of a forwarded publication.
type KeyFunc func(topic string, data any) []byte

// Adapter implements event.Forwarder using an injected Writer.
type Adapter struct {
	Writer Writer

	// Topic, when set, receives every record; otherwise the event topic is the Kafka topic.
	Topic   string
	Key     KeyFunc
	Headers map[string]string
}

// Option configures an Adapter.
type Option func(*Adapter)

var _ event.Forwarder = (*Adapter)(nil)

// New creates a new Kafka adapter instance with the provided writer.
// Records are keyed by event topic unless WithKeyFunc is given.
func New(w Writer, opts ...Option) *Adapter {
	a := &Adapter{Writer: w, Key: TopicKey}
	for _, o := range opts {
		o(a)
	}

	return a
}

// WithTopic sends every record to one Kafka topic.
func WithTopic(topic string) Option {
	return func(a *Adapter) { a.Topic = topic }
}

// WithKeyFunc sets the record key function. A nil fn produces unkeyed records.
func WithKeyFunc(fn KeyFunc) Option {
	return func(a *Adapter) { a.Key = fn }
}

// WithHeaders adds static headers to every record.
func WithHeaders(h map[string]string) Option {
	return func(a *Adapter) { a.Headers = h }
}

// TopicKey keys records by event topic so one topic stays on one partition.
func TopicKey(topic string, _ any) []byte { return []byte(topic) }

func (a *Adapter) Forward(ctx context.Context, topic string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Writer == nil {
		return fmt.Errorf("kafka forward %q: %w", topic, berr.ErrForwardFailed)
	}

	val, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("kafka forward %q serialize: %w", topic, errors.Join(berr.ErrSerializationFailed, err))
	}

	var key []byte
	if a.Key != nil {
		key = a.Key(topic, data)
	}

	dest := topic
	if a.Topic != "" {
		dest = a.Topic
	}

	headers := make(map[string]string, len(a.Headers)+1)
	maps.Copy(headers, a.Headers)
	headers[TopicHeader] = topic

	if err = a.Writer.Write(ctx, dest, key, val, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// separate return from preceding multi-line block (wsl)
		return fmt.Errorf("kafka forward %q write: %w", topic, errors.Join(berr.ErrForwardFailed, err))
	}

	return nil
}
