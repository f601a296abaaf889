package jwk

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	lestrratjwk "github.com/lestrrat-go/jwx/v2/jwk"
)

// mapCache is a synchronous cache.Cache for deterministic tests. It ignores TTL
// so that expiry is decided by KeyCache alone.
type mapCache struct {
	mu sync.Mutex
	m  map[string]any
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]any)} }

func (c *mapCache) Get(k string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[k]
	return v, ok
}

func (c *mapCache) Set(k string, v any, _ int64, _ time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[k] = v
	return true
}

func (c *mapCache) Del(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, k)
}

// countingFetcher serves a fixed document and counts calls. When gate is
// non-nil each fetch blocks until it is closed.
type countingFetcher struct {
	doc   []byte
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return k
}

// jwksDocument publishes the given public keys under their kids. An empty kid
// publishes the key without a "kid" member.
func jwksDocument(t *testing.T, keys map[string]any) []byte {
	t.Helper()
	set := lestrratjwk.NewSet()
	for kid, raw := range keys {
		k, err := lestrratjwk.FromRaw(raw)
		if err != nil {
			t.Fatalf("jwk from raw: %v", err)
		}
		if kid != "" {
			if err := k.Set(lestrratjwk.KeyIDKey, kid); err != nil {
				t.Fatalf("set kid: %v", err)
			}
		}
		if err := set.AddKey(k); err != nil {
			t.Fatalf("add key: %v", err)
		}
	}
	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return b
}
