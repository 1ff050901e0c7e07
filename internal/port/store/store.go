// Package store defines the durable key/value store port (interface).
//
// The store is multi-writer but collision-free by construction: workers
// write only under their own `<prefix>:<session_id>:<scenario_id>` keys and
// the orchestrator owns every `manager:<session_id>:*` key, so no locking
// is needed on top of the contract below.
package store

import "context"

// Store is the port interface for durable session artifacts.
type Store interface {
	// Get returns the value for key. The boolean reports whether the key
	// exists; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Ping verifies connectivity for health checks.
	Ping(ctx context.Context) error
}
