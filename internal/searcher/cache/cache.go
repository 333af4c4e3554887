// Package cache is an optional Redis-backed query-result cache with
// singleflight deduplication of concurrent identical queries. Search
// results are immutable between ingests, so the cache is invalidated on
// every write operation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/okapisearch/okapi/internal/searcher/executor"
	"github.com/okapisearch/okapi/pkg/config"
	pkgredis "github.com/okapisearch/okapi/pkg/redis"
)

const keyPrefix = "okapi:search:"

type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached results for the request signature or
// computes and stores them, collapsing concurrent identical requests into
// one computation. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	kind string,
	req executor.Request,
	computeFn func() ([]executor.Result, error),
) ([]executor.Result, bool, error) {
	key := c.buildKey(kind, req)
	if results, ok := c.get(ctx, key); ok {
		return results, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.get(ctx, key); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]executor.Result), false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) ([]executor.Result, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var results []executor.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return results, true
}

func (c *QueryCache) set(ctx context.Context, key string, results []executor.Result) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached search result; called after ingests and
// deletes.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(kind string, req executor.Request) string {
	raw, _ := json.Marshal(struct {
		Kind string
		Req  executor.Request
	}{kind, req})
	hash := sha256.Sum256(raw)
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
