package cache

import (
	"context"
	"time"
)

// Cache is the full cache surface the repositories depend on. A Redis
// client backs it in production; tests swap in miniredis.
type Cache interface {
	KeyOps
	SetOps
	LockOps

	// Ping verifies the cache connection is alive.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// KeyOps covers plain key-value access. Entity caches (user, problem)
// and the token blocklist only need these.
type KeyOps interface {
	// Get retrieves the value for the given key. A missing key yields
	// an empty string and no error.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair. A zero ttl means no expiration.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) error

	// Exists returns how many of the given keys exist.
	Exists(ctx context.Context, keys ...string) (int64, error)

	// Expire sets a timeout on a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// SetOps covers the unordered-set commands backing per-user solved
// problem sets.
type SetOps interface {
	// SAdd adds one or more members to a set.
	SAdd(ctx context.Context, key string, members ...interface{}) error

	// SIsMember checks if a value is a member of a set.
	SIsMember(ctx context.Context, key string, member interface{}) (bool, error)
}

// LockOps is the distributed lock used to keep periodic jobs
// single-flight across server instances.
type LockOps interface {
	// TryLock attempts to acquire the lock, reporting whether it got it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases the lock.
	Unlock(ctx context.Context, key string) error
}
