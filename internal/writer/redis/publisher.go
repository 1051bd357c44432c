// internal/writer/redis/publisher.go
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

const (
	latestKey       = "latest"
	readingsChannel = "readings"
)

// Publisher mirrors readings into Redis: the latest one under a key for
// pollers, and every one on a channel for subscribers.
type Publisher struct {
	client *redis.Client
	prefix string
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func New(cfg Config) *Publisher {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.Prefix)
}

func NewWithClient(client *redis.Client, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

func (p *Publisher) Name() string { return "redis" }

// LatestKey is the key holding the latest reading.
func (p *Publisher) LatestKey() string { return p.prefix + latestKey }

// Channel is the pub/sub channel readings are published on.
func (p *Publisher) Channel() string { return p.prefix + readingsChannel }

// WriteReading stores and publishes r in one round trip.
func (p *Publisher) WriteReading(ctx context.Context, r reading.Reading) error {
	payload, err := json.Marshal(reading.Encode(r))
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.LatestKey(), payload, 0)
	pipe.Publish(ctx, p.Channel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writer redis: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
