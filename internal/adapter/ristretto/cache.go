// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache. TestForge uses it as the L1 tier for
// session reports and status snapshots, where a short-lived local
// copy saves a round trip to the artifact store.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/TestForge/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Cache wraps a ristretto instance keyed by string with []byte values.
type Cache struct {
	rc *ristretto.Cache[string, []byte]
}

// New builds an L1 cache bounded by maxCostBytes. Cost is the byte
// length of each stored value.
func New(maxCostBytes int64) (*Cache, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{rc: rc}, nil
}

// Get returns the cached value and whether it was present.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value under key for at most ttl. Ristretto admission is
// probabilistic, so a Set may be dropped under memory pressure.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.rc.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Delete removes key from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.rc.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied. Tests use it to make
// Set visible before asserting on Get.
func (c *Cache) Wait() {
	c.rc.Wait()
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.rc.Close()
}
