// Package cache memoizes JHQL fetch results in Redis. Keys combine the
// snapshot ID with the canonical query text, so a rebuild can never
// serve results computed against an older snapshot.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/JobHunt/internal/job"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/JobHunt/pkg/metrics"
)

const keyPrefix = "jhql:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	PurgePrefix(ctx context.Context, prefix string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over backend. m may be nil.
func New(backend Backend, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, snapshotID string, query string) ([]job.Job, bool) {
	key := BuildKey(snapshotID, query)
	data, ok, err := c.backend.Load(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if !ok {
		c.miss()
		return nil, false
	}
	var jobs []job.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", query, "snapshot", snapshotID)
	return jobs, true
}

func (c *QueryCache) Set(ctx context.Context, snapshotID string, query string, jobs []job.Job) {
	key := BuildKey(snapshotID, query)
	data, err := json.Marshal(jobs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Save(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once per key across
// concurrent callers, storing what it returns. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	snapshotID string,
	query string,
	compute func() ([]job.Job, error),
) ([]job.Job, bool, error) {
	if jobs, ok := c.Get(ctx, snapshotID, query); ok {
		return jobs, true, nil
	}
	key := BuildKey(snapshotID, query)
	val, err, _ := c.group.Do(key, func() (any, error) {
		jobs, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, snapshotID, query, jobs)
		return jobs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]job.Job), false, nil
}

// Invalidate deletes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.PurgePrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the Redis key for a canonical query against one snapshot.
func BuildKey(snapshotID, query string) string {
	hash := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%s%s:%x", keyPrefix, snapshotID, hash[:16])
}
