// Package cache defines the port interface for report caching.
//
// Session reports are assembled from several store reads; the cache sits in
// front of that assembly. Entries are invalidated on every session
// mutation, so a TTL is only a backstop.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
