// Package tiered composes the L1 (in-process) and L2 (shared) caches
// behind the cache port. TestForge fronts session reports with it:
// reads prefer the local tier and fall back to the shared tier,
// writes and invalidations land on both.
package tiered

import (
	"context"
	"time"

	"github.com/Strob0t/TestForge/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Cache combines an L1 and an L2 cache. Get checks L1 first, then L2,
// backfilling L1 on an L2 hit. Set and Delete operate on both levels.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache with the given L1 and L2 backends.
// l1Expire controls how long L2 backfill entries live in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2. On L2 hit, backfills L1. An L2 read error
// degrades to a miss: the cache is an optimization over the artifact
// store, and a flaky shared tier must not fail the read path.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		return nil, false, nil
	}
	if found {
		_ = c.l1.Set(ctx, key, val, c.l1Expire)
		return val, true, nil
	}

	return nil, false, nil
}

// Set writes to both L1 and L2.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.l2.Set(ctx, key, value, ttl)
}

// Delete removes from both L1 and L2. Errors propagate because a
// stale report must not outlive its invalidation.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}
