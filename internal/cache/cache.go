// Package cache provides the result cache the report layer reads and writes
// with per-key expiration. The cache is an optimization, never a correctness
// dependency; callers treat any failure as a miss.
package cache

import (
	"context"
	"time"
)

// Cache is a key→value store with per-key TTL. Get returns
// sentinel.ErrCacheMiss for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
