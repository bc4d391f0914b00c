package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	berr "github.com/next-trace/scg-event-service/contract/errors"
)

// Concrete go-redis backed constructor.

type Config struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
	DialTimeout   time.Duration
}

// NewWithRedis connects to Redis and returns an Adapter, the underlying client and
// a cleanup. The connection is verified with PING.
func NewWithRedis(ctx context.Context, cfg Config, opts ...Option) (*Adapter, *goredis.Client, func(), error) {
	if cfg.Addr == "" {
		return nil, nil, nil, fmt.Errorf("%w: redis addr required", berr.ErrConfiguration)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("%w: redis ping: %w", berr.ErrForwardFailed, err)
	}

	ad := NewWithClient(client, append([]Option{WithChannelPrefix(cfg.ChannelPrefix)}, opts...)...)
	cleanup := func() { _ = client.Close() }

	return ad, client, cleanup, nil
}
