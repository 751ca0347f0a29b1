// Package redis is the Redis backend of the rank cache.
//
// The cache stores one string value per ranking under keys of the form
// rageval:rank:<index fingerprint>:<hash of query terms, top-k and BM25
// params>, each with the configured cache TTL. Invalidation removes a whole
// fingerprint namespace with FlushByPattern. A missing key is reported as Nil
// and is a cache miss, never a failure.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rag-eval/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 5 * time.Second
	scanBatch   = 100
)

// Nil is returned by Get when the key does not exist.
var Nil = redis.Nil

// Client holds the pooled connection used by the rank cache.
type Client struct {
	rdb *redis.Client
}

// NewClient connects with cfg's pool settings and fails when the server does
// not answer a PING, so callers can run uncached instead.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the serialized ranking stored under key, or Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set stores a serialized ranking. A zero ttl keeps the key until invalidated.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// FlushByPattern removes every key matching the glob pattern and returns how
// many were removed. Keys are unlinked one SCAN page at a time so a large
// namespace neither blocks the server nor costs a round trip per key.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		deleted int64
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Unlink(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("unlinking %d keys of %s: %w", len(keys), pattern, err)
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// IsNilError reports whether err is, or wraps, a missing-key reply.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping backs the readiness check of the scoring service.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
