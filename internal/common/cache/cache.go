// Package cache provides a Redis backed get-or-compute cache.
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/common/metrics"
)

// ComputeFunc produces the value on a cache miss.
type ComputeFunc func(ctx context.Context) (string, error)

// Cache collapses concurrent computations of one key inside the process and stores results
// in Redis. Redis failures are logged and fall through to compute; the cache never fails
// a request on its own.
type Cache struct {
	name   string
	prefix string
	client redis.UniversalClient
	group  singleflight.Group
	logger logger.Logger
}

// New returns a cache whose keys are prefixed with "tour:cache:<name>:". A nil client
// disables storage but keeps in-process collapsing.
func New(name string, client redis.UniversalClient, log logger.Logger) *Cache {
	return &Cache{
		name:   name,
		prefix: "tour:cache:" + name + ":",
		client: client,
		logger: log.WithFields(map[string]interface{}{"cache": name}),
	}
}

// GetOrCompute returns the cached value for key, or computes, stores and returns it.
// hit reports whether the value came from Redis.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (value string, hit bool, err error) {
	fullKey := c.prefix + key

	if c.client != nil {
		cached, err := c.client.Get(ctx, fullKey).Result()
		switch {
		case err == nil:
			metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
			return cached, true, nil
		case !stderrors.Is(err, redis.Nil):
			c.logger.Warn("Cache read failed, computing value", map[string]interface{}{
				"key":   fullKey,
				"error": err,
			})
		}
	}
	metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()

	// The shared computation outlives any single caller; each caller waits on its own ctx.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fullKey, func() (interface{}, error) {
		computed, err := compute(flightCtx)
		if err != nil {
			return "", err
		}
		if c.client != nil {
			if err := c.client.Set(flightCtx, fullKey, computed, ttl).Err(); err != nil {
				c.logger.Warn("Cache write failed", map[string]interface{}{
					"key":   fullKey,
					"error": err,
				})
			}
		}
		return computed, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		return res.Val.(string), false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// GetOrComputeJSON is GetOrCompute for JSON encoded values. A stored value that no longer
// decodes into T is invalidated and recomputed.
func GetOrComputeJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	encoded := func(ctx context.Context) (string, error) {
		v, err := compute(ctx)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var out T
	raw, hit, err := c.GetOrCompute(ctx, key, ttl, encoded)
	if err != nil {
		return out, false, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		if !hit {
			return out, false, err
		}
		c.logger.Warn("Cached value does not decode, recomputing", map[string]interface{}{
			"key":   c.prefix + key,
			"error": err,
		})
		if err := c.Invalidate(ctx, key); err != nil {
			out, err := compute(ctx)
			return out, false, err
		}
		return GetOrComputeJSON(ctx, c, key, ttl, compute)
	}
	return out, hit, nil
}

// Invalidate removes a key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}
