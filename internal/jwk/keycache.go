package jwk

import (
	"time"

	"github.com/keksclan/goAuthn/internal/cache"
)

// KeyCache holds resolved signing keys by kid for one key-publication URL.
// An entry older than the TTL is reported as absent, whatever the backing
// store still holds.
type KeyCache struct {
	store     cache.Cache
	namespace string
	ttl       time.Duration
	now       func() time.Time
}

// NewKeyCache returns a KeyCache storing entries in store under a namespace
// derived from jwksURL, so one store can serve several issuers.
func NewKeyCache(store cache.Cache, jwksURL string, ttl time.Duration, now func() time.Time) *KeyCache {
	if now == nil {
		now = time.Now
	}
	return &KeyCache{
		store:     store,
		namespace: "jwks:" + jwksURL + ":",
		ttl:       ttl,
		now:       now,
	}
}

// TTL reports the maximum age of a returned entry.
func (c *KeyCache) TTL() time.Duration { return c.ttl }

func (c *KeyCache) Get(kid string) (*SigningKey, bool) {
	v, ok := c.store.Get(c.namespace + kid)
	if !ok {
		return nil, false
	}
	key, ok := v.(*SigningKey)
	if !ok || key == nil {
		return nil, false
	}
	if c.now().Sub(key.FetchedAt) > c.ttl {
		return nil, false
	}
	return key, true
}

// Put replaces the entry for kid in a single store write.
func (c *KeyCache) Put(kid string, key *SigningKey) {
	c.store.Set(c.namespace+kid, key, 1, c.ttl)
}
