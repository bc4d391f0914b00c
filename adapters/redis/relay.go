package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
)

// Decoder turns a Redis message payload into the data published on the service.
type Decoder func(payload []byte) (any, error)

// JSONDecoder decodes payloads into generic JSON values.
func JSONDecoder(payload []byte) (any, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}

	return v, nil
}

// Relay republishes Redis messages on an event service.
type Relay struct {
	Client  goredis.UniversalClient
	Service event.Service
	Prefix  string
	Decode  Decoder
	Logger  *slog.Logger
}

// Run pattern-subscribes to prefix+pattern (Redis glob syntax) and publishes every
// message on the service under its channel name with the prefix removed. It blocks
// until ctx is done or the subscription fails.
//
// ready, when non-nil, is closed once the subscription is active.
func (r *Relay) Run(ctx context.Context, pattern string, ready chan<- struct{}) error {
	if r.Client == nil || r.Service == nil {
		return fmt.Errorf("redis relay %q: %w", pattern, berr.ErrConfiguration)
	}

	decode := r.Decode
	if decode == nil {
		decode = JSONDecoder
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ps := r.Client.PSubscribe(ctx, r.Prefix+pattern)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return relayErr(pattern, err)
	}

	if ready != nil {
		close(ready)
	}

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			topic := strings.TrimPrefix(msg.Channel, r.Prefix)

			data, err := decode([]byte(msg.Payload))
			if err != nil {
				logger.WarnContext(ctx, "redis relay dropped undecodable message", "channel", msg.Channel, "err", err)
				continue
			}

			if err := r.Service.PublishTopic(ctx, topic, data); err != nil {
				logger.WarnContext(ctx, "redis relay publish failed", "topic", topic, "err", err)
			}
		}
	}
}

func relayErr(pattern string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("redis relay %q subscribe: %w", pattern, errors.Join(berr.ErrForwardFailed, err))
}
