// Package cache provides report caches keyed by snapshot content: a Redis
// backend shared across instances and an in-process LRU memo for single
// instances or as a fallback when Redis is disabled.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

const keyPrefix = "ckd:report:"

// RedisCache implements domain.ReportCache over Redis.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	log        *logrus.Logger
}

// NewRedisCache creates a Redis-backed report cache and verifies the
// connection.
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
		log:        logger,
	}, nil
}

// Get returns the cached report for a snapshot key, if present. Cache
// errors degrade to a miss; evaluation always proceeds without the cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.ComprehensiveReport, bool) {
	val, err := c.redis.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("Report cache read failed")
		return nil, false
	}

	var report domain.ComprehensiveReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		// Corrupted entry, drop it
		c.redis.Del(ctx, keyPrefix+key)
		return nil, false
	}

	return &report, true
}

// Set stores a report under a snapshot key with the given TTL (the
// configured default when zero).
func (c *RedisCache) Set(ctx context.Context, key string, report *domain.ComprehensiveReport, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return c.redis.Set(ctx, keyPrefix+key, data, ttl).Err()
}

// Invalidate removes the cached report for a snapshot key.
func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	return c.redis.Del(ctx, keyPrefix+key).Err()
}

// Ping checks if the Redis connection is alive.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

// SnapshotKey derives a content-addressed cache key from a snapshot, so an
// unchanged snapshot maps to the same cached report and any clinical change
// produces a new key.
func SnapshotKey(s *domain.PatientSnapshot) string {
	data, err := json.Marshal(s)
	if err != nil {
		// Snapshots are plain data; marshal cannot realistically fail.
		return s.PatientID
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", s.PatientID, hash[:12])
}
