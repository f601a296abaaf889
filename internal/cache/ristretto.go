package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// RistrettoConfig sizes a RistrettoCache. Zero fields fall back to defaults
// suited to a handful of published signing keys.
type RistrettoConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

const (
	defaultNumCounters = 1 << 12
	defaultMaxCost     = 1 << 20
	defaultBufferItems = 64
)

// RistrettoCache adapts ristretto to the Cache interface.
type RistrettoCache struct {
	cache *ristretto.Cache
}

func NewRistrettoCache(cfg RistrettoConfig) (*RistrettoCache, error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = defaultNumCounters
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = defaultMaxCost
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = defaultBufferItems
	}
	// Costs are entry counts, not bytes.
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        cfg.BufferItems,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &RistrettoCache{cache: c}, nil
}

func (r *RistrettoCache) Get(key string) (any, bool) {
	return r.cache.Get(key)
}

// Set stores value and blocks until the write is visible to Get.
// Ristretto buffers writes, and a resolved key must be readable by the
// very next lookup or the fetch-once guarantee degrades.
func (r *RistrettoCache) Set(key string, value any, cost int64, ttl time.Duration) bool {
	ok := r.cache.SetWithTTL(key, value, cost, ttl)
	r.cache.Wait()
	return ok
}

func (r *RistrettoCache) Del(key string) {
	r.cache.Del(key)
}

// Clear drops every entry.
func (r *RistrettoCache) Clear() { r.cache.Clear() }

// Close stops ristretto's background goroutines.
func (r *RistrettoCache) Close() { r.cache.Close() }
