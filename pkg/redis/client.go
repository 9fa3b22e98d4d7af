// Package redis is the go-redis/v9 backend for the JHQL result cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
)

const scanBatch = 100

type Client struct {
	rdb *redis.Client
}

// NewClient dials Redis and fails fast when the server does not answer a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Load returns the payload stored under key. A missing key is reported with
// ok=false and a nil error.
func (c *Client) Load(ctx context.Context, key string) (payload []byte, ok bool, err error) {
	payload, err = c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("loading %s: %w", key, err)
	}
	return payload, true, nil
}

// Save stores payload under key, expiring after ttl (zero keeps it forever).
func (c *Client) Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// PurgePrefix unlinks every key starting with prefix and returns how many
// were removed. Keys are collected with SCAN so the server is never blocked.
func (c *Client) PurgePrefix(ctx context.Context, prefix string) (int64, error) {
	var (
		removed int64
		pending = make([]string, 0, scanBatch)
	)
	unlink := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := c.rdb.Unlink(ctx, pending...).Result()
		removed += n
		pending = pending[:0]
		return err
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		pending = append(pending, iter.Val())
		if len(pending) < scanBatch {
			continue
		}
		if err := unlink(); err != nil {
			return removed, fmt.Errorf("purging %s*: %w", prefix, err)
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scanning %s*: %w", prefix, err)
	}
	if err := unlink(); err != nil {
		return removed, fmt.Errorf("purging %s*: %w", prefix, err)
	}
	return removed, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
