package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vbonduro/icewatch/internal/observability"
)

// Cache stores reverse geocoding results by key.
type Cache interface {
	Get(ctx context.Context, key string) (Place, bool, error)
	Set(ctx context.Context, key string, p Place) error
}

// CachedReverser wraps a Reverser with a cache. Lookups that fail are not
// cached so they can be retried.
type CachedReverser struct {
	inner   Reverser
	cache   Cache
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewCachedReverser(inner Reverser, cache Cache, metrics *observability.Metrics, logger *slog.Logger) *CachedReverser {
	return &CachedReverser{inner: inner, cache: cache, metrics: metrics, logger: logger}
}

// cacheKey rounds to 5 decimals, roughly one meter.
func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("rev:%.5f,%.5f", lat, lng)
}

func (c *CachedReverser) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	key := cacheKey(lat, lng)

	p, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("geocode cache read failed", "key", key, "error", err)
	} else if ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return p, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	p, err = c.inner.Reverse(ctx, lat, lng)
	if err != nil {
		return Place{}, err
	}
	if err := c.cache.Set(ctx, key, p); err != nil {
		c.logger.Warn("geocode cache write failed", "key", key, "error", err)
	}
	return p, nil
}

// LRUCache is an in-process cache bounded by entry count.
type LRUCache struct {
	lru *lru.Cache[string, Place]
}

func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, Place](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRUCache{lru: c}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) (Place, bool, error) {
	p, ok := c.lru.Get(key)
	return p, ok, nil
}

func (c *LRUCache) Set(_ context.Context, key string, p Place) error {
	c.lru.Add(key, p)
	return nil
}

func (c *LRUCache) Len() int {
	return c.lru.Len()
}

const redisKeyPrefix = "icewatch:geocode:"

// RedisCache shares results between instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// DialRedis parses redisURL and checks the server answers.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (Place, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Place{}, false, nil
	}
	if err != nil {
		return Place{}, false, fmt.Errorf("failed to read cache: %w", err)
	}
	var p Place
	if err := json.Unmarshal(raw, &p); err != nil {
		return Place{}, false, fmt.Errorf("failed to decode cached place: %w", err)
	}
	return p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, p Place) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode place: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}
