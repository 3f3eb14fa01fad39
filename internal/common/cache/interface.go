package cache

import (
	"context"
	"time"
)

// Cache is the key-value subset the execution service needs.
type Cache interface {
	// Get returns "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Del(ctx context.Context, keys ...string) error

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}
