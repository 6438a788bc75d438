package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/medscan-resolver/internal/domain"
)

// VerificationCache stores label lookups keyed by sanitized drug name.
// A cached nil result records that the label service had no entry.
type VerificationCache interface {
	Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error)
	Set(ctx context.Context, key string, result *domain.VerificationResult, ttl time.Duration) error
	Close() error
}

const (
	defaultCacheTTL      = 24 * time.Hour
	defaultCacheMaxItems = 1000
	labelKeyPrefix       = "medscan:label:"
)

// cachedLabel is the stored form of a lookup, with metadata
type cachedLabel struct {
	Data      *domain.VerificationResult `json:"data"`
	CachedAt  time.Time                  `json:"cached_at"`
	ExpiresAt time.Time                  `json:"expires_at"`
}

// NewVerificationCache builds the cache backend selected by configuration.
// The "none" backend returns a nil cache.
func NewVerificationCache(config domain.CacheConfig) (VerificationCache, error) {
	switch config.Backend {
	case "", domain.CacheBackendMemory:
		return NewMemoryCache(config.MaxItems, config.DefaultTTL), nil
	case domain.CacheBackendRedis:
		return NewRedisCache(config)
	case domain.CacheBackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", config.Backend)
	}
}

// MemoryCache is an in-process LRU with expiry
type MemoryCache struct {
	lru *expirable.LRU[string, cachedLabel]
}

// NewMemoryCache creates an in-process cache holding up to maxItems entries
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultCacheMaxItems
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, cachedLabel](maxItems, nil, ttl)}
}

// Get implements VerificationCache
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.ExpiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return cloneVerification(entry.Data), true, nil
}

// Set implements VerificationCache. A ttl longer than the cache-wide TTL is capped by it.
func (c *MemoryCache) Set(ctx context.Context, key string, result *domain.VerificationResult, ttl time.Duration) error {
	now := time.Now()
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c.lru.Add(key, cachedLabel{Data: cloneVerification(result), CachedAt: now, ExpiresAt: now.Add(ttl)})
	return nil
}

// Len returns the number of live entries
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close implements VerificationCache
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

func cloneVerification(v *domain.VerificationResult) *domain.VerificationResult {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// RedisCache shares label lookups across processes
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{redis: client, defaultTTL: ttl}, nil
}

// Get implements VerificationCache
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error) {
	redisKey := labelCacheKey(key)

	val, err := c.redis.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get label cache: %w", err)
	}

	var cached cachedLabel
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, redisKey)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, redisKey)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// Set implements VerificationCache
func (c *RedisCache) Set(ctx context.Context, key string, result *domain.VerificationResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	data, err := json.Marshal(cachedLabel{Data: result, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return fmt.Errorf("failed to marshal label cache data: %w", err)
	}

	return c.redis.Set(ctx, labelCacheKey(key), data, ttl).Err()
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close implements VerificationCache
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

func labelCacheKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s%x", labelKeyPrefix, hash[:16])
}
