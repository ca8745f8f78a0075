package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

// MemoCache is an in-process, size-bounded report cache with a fixed TTL.
// It implements domain.ReportCache and serves deployments that run without
// Redis. Entries expire on the cache-wide TTL; the per-call TTL argument is
// ignored.
type MemoCache struct {
	lru *expirable.LRU[string, *domain.ComprehensiveReport]
}

// NewMemoCache creates a memo cache holding at most size reports, each
// expiring after ttl.
func NewMemoCache(size int, ttl time.Duration) *MemoCache {
	return &MemoCache{
		lru: expirable.NewLRU[string, *domain.ComprehensiveReport](size, nil, ttl),
	}
}

// Get returns the cached report for a snapshot key, if present and fresh.
func (c *MemoCache) Get(_ context.Context, key string) (*domain.ComprehensiveReport, bool) {
	return c.lru.Get(key)
}

// Set stores a report under a snapshot key.
func (c *MemoCache) Set(_ context.Context, key string, report *domain.ComprehensiveReport, _ time.Duration) error {
	c.lru.Add(key, report)
	return nil
}

// Len returns the number of live entries.
func (c *MemoCache) Len() int {
	return c.lru.Len()
}

// Purge drops all entries.
func (c *MemoCache) Purge() {
	c.lru.Purge()
}
