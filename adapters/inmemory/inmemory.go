package inmemory

import (
	"context"
	"sync"

	"github.com/next-trace/scg-event-service/contract/event"
)

// Message is one recorded forward.
type Message struct {
	Topic string
	Data  any
}

// Forwarder is a thread-safe in-memory implementation of event.Forwarder.
// It records forwarded publications for testing and examples.
type Forwarder struct {
	mu       sync.Mutex
	messages []Message
}

// Ensure Forwarder implements the contract.
var _ event.Forwarder = (*Forwarder)(nil)

// New creates a new in-memory forwarder.
func New() *Forwarder { return &Forwarder{} }

func (f *Forwarder) Forward(ctx context.Context, topic string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.messages = append(f.messages, Message{Topic: topic, Data: data})
	f.mu.Unlock()

	return nil
}

// Messages returns a copy of the recorded forwards in arrival order.
func (f *Forwarder) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Message(nil), f.messages...)
}

// Topics returns the recorded topics in arrival order.
func (f *Forwarder) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Topic
	}

	return out
}

// Reset drops every recorded forward.
func (f *Forwarder) Reset() {
	f.mu.Lock()
	f.messages = nil
	f.mu.Unlock()
}
