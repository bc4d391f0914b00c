// Package config loads event service settings from TOML and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/next-trace/scg-event-service/adapters/kafka"
	"github.com/next-trace/scg-event-service/adapters/nats"
	"github.com/next-trace/scg-event-service/adapters/rabbitmq"
	"github.com/next-trace/scg-event-service/adapters/redis"
	berr "github.com/next-trace/scg-event-service/contract/errors"
	"github.com/next-trace/scg-event-service/contract/event"
	"github.com/next-trace/scg-event-service/eventservice"
	"github.com/next-trace/scg-event-service/locator"
	"github.com/next-trace/scg-event-service/resolver"
)

// Environment variables read by FromEnv.
const (
	EnvDefaultKind      = "SCG_EVENTSERVICE_DEFAULT_KIND"
	EnvDeclaredStrength = "SCG_EVENTSERVICE_DECLARED_STRENGTH"
	EnvLogLevel         = "SCG_EVENTSERVICE_LOG_LEVEL"
)

// Config is the runtime configuration of an event service process.
type Config struct {
	// DefaultKind is the service kind of the default bus and of auto-created
	// services that name no kind.
	DefaultKind string

	// HonorDeclaredStrength registers Weak declarations through the weak disciplines.
	HonorDeclaredStrength bool

	// ParallelLimit bounds concurrent deliveries of "parallel" services; 0 is unbounded.
	ParallelLimit int

	LogLevel slog.Level

	NATS     NATS
	Kafka    Kafka
	RabbitMQ RabbitMQ
	Redis    Redis
}

type NATS struct {
	URL           string
	Name          string
	SubjectPrefix string
	ConnTimeout   time.Duration
	MaxReconnects int
}

type Kafka struct {
	Brokers     []string
	ClientID    string
	Topic       string
	Acks        string
	Compression string
}

type RabbitMQ struct {
	URL         string
	Exchange    string
	ConnTimeout time.Duration
}

type Redis struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DefaultKind: locator.KindSequential,
		LogLevel:    slog.LevelInfo,
		NATS:        NATS{Name: "scg-event-service", ConnTimeout: 2 * time.Second, MaxReconnects: 60},
		Kafka:       Kafka{ClientID: "scg-event-service", Acks: "all"},
		RabbitMQ:    RabbitMQ{Exchange: rabbitmq.DefaultExchange, ConnTimeout: 5 * time.Second},
	}
}

// config.toml key mapping.
type fileConfig struct {
	DefaultKind           string `toml:"default_kind"`
	HonorDeclaredStrength bool   `toml:"honor_declared_strength"`
	ParallelLimit         int    `toml:"parallel_limit"`
	LogLevel              string `toml:"log_level"`

	NATS struct {
		URL           string `toml:"url"`
		Name          string `toml:"name"`
		SubjectPrefix string `toml:"subject_prefix"`
		ConnTimeout   string `toml:"conn_timeout"`
		MaxReconnects int    `toml:"max_reconnects"`
	} `toml:"nats"`

	Kafka struct {
		Brokers     []string `toml:"brokers"`
		ClientID    string   `toml:"client_id"`
		Topic       string   `toml:"topic"`
		Acks        string   `toml:"acks"`
		Compression string   `toml:"compression"`
	} `toml:"kafka"`

	RabbitMQ struct {
		URL         string `toml:"url"`
		Exchange    string `toml:"exchange"`
		ConnTimeout string `toml:"conn_timeout"`
	} `toml:"rabbitmq"`

	Redis struct {
		Addr          string `toml:"addr"`
		Password      string `toml:"password"`
		DB            int    `toml:"db"`
		ChannelPrefix string `toml:"channel_prefix"`
	} `toml:"redis"`
}

// Load reads a TOML file and overlays the keys it defines onto Default.
func Load(path string) (Config, error) {
	var raw fileConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w: %w", path, berr.ErrConfiguration, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q: %w", path, undecoded[0].String(), berr.ErrConfiguration)
	}

	cfg := Default()
	o := overlay{meta: meta}

	o.str(&cfg.DefaultKind, raw.DefaultKind, "default_kind")
	o.boolean(&cfg.HonorDeclaredStrength, raw.HonorDeclaredStrength, "honor_declared_strength")
	o.integer(&cfg.ParallelLimit, raw.ParallelLimit, "parallel_limit")
	o.level(&cfg.LogLevel, raw.LogLevel, "log_level")

	o.str(&cfg.NATS.URL, raw.NATS.URL, "nats", "url")
	o.str(&cfg.NATS.Name, raw.NATS.Name, "nats", "name")
	o.str(&cfg.NATS.SubjectPrefix, raw.NATS.SubjectPrefix, "nats", "subject_prefix")
	o.duration(&cfg.NATS.ConnTimeout, raw.NATS.ConnTimeout, "nats", "conn_timeout")
	o.integer(&cfg.NATS.MaxReconnects, raw.NATS.MaxReconnects, "nats", "max_reconnects")

	if meta.IsDefined("kafka", "brokers") {
		cfg.Kafka.Brokers = raw.Kafka.Brokers
	}

	o.str(&cfg.Kafka.ClientID, raw.Kafka.ClientID, "kafka", "client_id")
	o.str(&cfg.Kafka.Topic, raw.Kafka.Topic, "kafka", "topic")
	o.str(&cfg.Kafka.Acks, raw.Kafka.Acks, "kafka", "acks")
	o.str(&cfg.Kafka.Compression, raw.Kafka.Compression, "kafka", "compression")

	o.str(&cfg.RabbitMQ.URL, raw.RabbitMQ.URL, "rabbitmq", "url")
	o.str(&cfg.RabbitMQ.Exchange, raw.RabbitMQ.Exchange, "rabbitmq", "exchange")
	o.duration(&cfg.RabbitMQ.ConnTimeout, raw.RabbitMQ.ConnTimeout, "rabbitmq", "conn_timeout")

	o.str(&cfg.Redis.Addr, raw.Redis.Addr, "redis", "addr")
	o.str(&cfg.Redis.Password, raw.Redis.Password, "redis", "password")
	o.integer(&cfg.Redis.DB, raw.Redis.DB, "redis", "db")
	o.str(&cfg.Redis.ChannelPrefix, raw.Redis.ChannelPrefix, "redis", "channel_prefix")

	if o.err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, o.err)
	}

	if cfg.ParallelLimit < 0 {
		return Config{}, fmt.Errorf("load config %s: parallel_limit must not be negative: %w", path, berr.ErrConfiguration)
	}

	return cfg, nil
}

// FromEnv overlays the process environment onto cfg.
func FromEnv(cfg Config) (Config, error) {
	return FromLookup(cfg, os.LookupEnv)
}

// FromLookup overlays the variables lookup reports onto cfg.
func FromLookup(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvDefaultKind); ok && strings.TrimSpace(v) != "" {
		cfg.DefaultKind = strings.TrimSpace(v)
	}

	if v, ok := lookup(EnvDeclaredStrength); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("env %s=%q: %w", EnvDeclaredStrength, v, berr.ErrConfiguration)
		}

		cfg.HonorDeclaredStrength = b
	}

	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return Config{}, fmt.Errorf("env %s=%q: %w", EnvLogLevel, v, berr.ErrConfiguration)
		}
	}

	return cfg, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

// LocatorOptions translates c into locator options.
func (c Config) LocatorOptions() []locator.Option {
	opts := []locator.Option{locator.WithDefaultKind(c.DefaultKind)}

	if c.ParallelLimit > 0 {
		limit := c.ParallelLimit
		opts = append(opts, locator.WithKind(locator.KindParallel, func() (event.Service, error) {
			return eventservice.New(eventservice.WithParallelDelivery(limit)), nil
		}))
	}

	return opts
}

// ResolverOptions translates c into resolver options.
func (c Config) ResolverOptions() []resolver.Option {
	if c.HonorDeclaredStrength {
		return []resolver.Option{resolver.WithDeclaredStrength()}
	}

	return nil
}

// NATSConfig returns the connection settings of the NATS forwarder.
func (c Config) NATSConfig() nats.Config {
	return nats.Config{
		URL:           c.NATS.URL,
		Name:          c.NATS.Name,
		SubjectPrefix: c.NATS.SubjectPrefix,
		ConnTimeout:   c.NATS.ConnTimeout,
		MaxReconnects: c.NATS.MaxReconnects,
	}
}

// KafkaConfig returns the client settings of the Kafka forwarder.
func (c Config) KafkaConfig() kafka.Config {
	return kafka.Config{
		Brokers:     c.Kafka.Brokers,
		ClientID:    c.Kafka.ClientID,
		Topic:       c.Kafka.Topic,
		Acks:        c.Kafka.Acks,
		Compression: c.Kafka.Compression,
	}
}

// RabbitMQConfig returns the connection settings of the RabbitMQ forwarder.
func (c Config) RabbitMQConfig() rabbitmq.Config {
	return rabbitmq.Config{URL: c.RabbitMQ.URL, Exchange: c.RabbitMQ.Exchange, ConnTimeout: c.RabbitMQ.ConnTimeout}
}

// RedisConfig returns the connection settings of the Redis forwarder.
func (c Config) RedisConfig() redis.Config {
	return redis.Config{
		Addr:          c.Redis.Addr,
		Password:      c.Redis.Password,
		DB:            c.Redis.DB,
		ChannelPrefix: c.Redis.ChannelPrefix,
	}
}

// overlay copies decoded values whose keys the file defines. The first parse
// failure is kept in err.
type overlay struct {
	meta toml.MetaData
	err  error
}

func (o *overlay) str(dst *string, v string, key ...string) {
	if o.meta.IsDefined(key...) {
		*dst = strings.TrimSpace(v)
	}
}

func (o *overlay) boolean(dst *bool, v bool, key ...string) {
	if o.meta.IsDefined(key...) {
		*dst = v
	}
}

func (o *overlay) integer(dst *int, v int, key ...string) {
	if o.meta.IsDefined(key...) {
		*dst = v
	}
}

func (o *overlay) duration(dst *time.Duration, v string, key ...string) {
	if o.err != nil || !o.meta.IsDefined(key...) {
		return
	}

	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		o.err = fmt.Errorf("%s: %w: %w", strings.Join(key, "."), berr.ErrConfiguration, err)
		return
	}

	*dst = d
}

func (o *overlay) level(dst *slog.Level, v string, key ...string) {
	if o.err != nil || !o.meta.IsDefined(key...) {
		return
	}

	if err := dst.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		o.err = fmt.Errorf("%s: %w: %w", strings.Join(key, "."), berr.ErrConfiguration, err)
	}
}
