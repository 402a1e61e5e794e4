package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeno-bellido/ich-backend/pkg/domain"
	"github.com/redis/go-redis/v9"
)

const defaultStatsKeyPrefix = "ich:stats:product:"

// RedisStatsCache stores per-product rating summaries in Redis.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStatsCache builds a Redis-backed summary cache.
func NewRedisStatsCache(addr, password string, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisStatsCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl:    ttl,
		prefix: defaultStatsKeyPrefix,
	}
}

// Ping checks Redis connectivity.
func (c *RedisStatsCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}

// ProductGeneration returns the current summary generation of a product.
// Generations start at 0 and only move forward.
func (c *RedisStatsCache) ProductGeneration(ctx context.Context, productID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	gen, err := c.client.Get(ctx, c.genKey(productID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get summary generation: %w", err)
	}
	return gen, nil
}

// GetProductSummary returns the summary cached under generation gen, if present.
func (c *RedisStatsCache) GetProductSummary(ctx context.Context, productID string, gen int64) (domain.RatingSummary, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	raw, err := c.client.Get(ctx, c.summaryKey(productID, gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RatingSummary{}, false, nil
		}
		return domain.RatingSummary{}, false, fmt.Errorf("get product summary: %w", err)
	}
	var summary domain.RatingSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return domain.RatingSummary{}, false, fmt.Errorf("decode product summary: %w", err)
	}
	return summary, true, nil
}

// SetProductSummary caches summary under generation gen until the TTL
// elapses. A summary computed before an invalidation lands on a generation
// that is no longer read.
func (c *RedisStatsCache) SetProductSummary(ctx context.Context, productID string, gen int64, summary domain.RatingSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode product summary: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, c.summaryKey(productID, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set product summary: %w", err)
	}
	return nil
}

// InvalidateProduct advances the product's generation so every summary
// cached so far, or still being computed, is no longer served.
func (c *RedisStatsCache) InvalidateProduct(ctx context.Context, productID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.client.Incr(ctx, c.genKey(productID)).Err(); err != nil {
		return fmt.Errorf("invalidate product summary: %w", err)
	}
	return nil
}

// The generation key carries no TTL; expiring it would reset the counter to
// a generation whose stale summary may still be cached.
func (c *RedisStatsCache) genKey(productID string) string {
	return c.prefix + strings.TrimSpace(productID) + ":gen"
}

func (c *RedisStatsCache) summaryKey(productID string, gen int64) string {
	return c.prefix + strings.TrimSpace(productID) + ":" + strconv.FormatInt(gen, 10)
}
