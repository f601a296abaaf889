// Package cache defines the storage backend used for resolved signing keys.
package cache

import (
	"time"
)

// Cache is a cost-aware key/value store with per-entry TTL.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, cost int64, ttl time.Duration) bool
	Del(key string)
}
