// Package redis keeps the alert ledger in Redis keys.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces ledger keys.
const DefaultPrefix = "roomwatch:alerted:"

// Config controls the Redis client used for the ledger.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL expires marks; zero keeps them forever.
	TTL time.Duration
}

// Ledger marks ids with SETNX so the first alert time is kept.
type Ledger struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// New creates a Redis-backed ledger.
func New(cfg Config) (*Ledger, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("ledger.redis_addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, ttl time.Duration) *Ledger {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Ledger{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key for id.
func (l *Ledger) Key(id int64) string {
	return l.prefix + strconv.FormatInt(id, 10)
}

// Seen reports whether the id key exists.
func (l *Ledger) Seen(ctx context.Context, id int64) (bool, error) {
	n, err := l.client.Exists(ctx, l.Key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", l.Key(id), err)
	}
	return n > 0, nil
}

// Mark stores the alert time under the id key unless already present.
func (l *Ledger) Mark(ctx context.Context, id int64, at time.Time) error {
	value := at.UTC().Format(time.RFC3339)
	if err := l.client.SetNX(ctx, l.Key(id), value, l.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx %s: %w", l.Key(id), err)
	}
	return nil
}

// Close closes the client.
func (l *Ledger) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
