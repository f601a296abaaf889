package cache

import (
	"testing"
	"time"
)

func TestRistrettoCacheSetGet(t *testing.T) {
	c, err := NewRistrettoCache(RistrettoConfig{})
	if err != nil {
		t.Fatalf("NewRistrettoCache: %v", err)
	}
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("kid-1", "value", 1, time.Minute)
	v, ok := c.Get("kid-1")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if v.(string) != "value" {
		t.Errorf("got %v, want value", v)
	}

	c.Del("kid-1")
	if _, ok := c.Get("kid-1"); ok {
		t.Error("expected miss after Del")
	}
}

func TestRistrettoCacheClear(t *testing.T) {
	c, err := NewRistrettoCache(RistrettoConfig{NumCounters: 100, MaxCost: 10, BufferItems: 64})
	if err != nil {
		t.Fatalf("NewRistrettoCache: %v", err)
	}
	defer c.Close()

	c.Set("a", 1, 1, time.Minute)
	c.Set("b", 2, 1, time.Minute)
	c.Clear()
	for _, k := range []string{"a", "b"} {
		if _, ok := c.Get(k); ok {
			t.Errorf("expected %q to be cleared", k)
		}
	}
}
