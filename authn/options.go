package authn

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/keksclan/goAuthn/internal/jwk"
)

// Cache stores resolved signing keys. It must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, cost int64, ttl time.Duration) bool
	Del(key string)
}

// Fetcher retrieves the key-publication document by URL.
type Fetcher = jwk.DocumentFetcher

// MetricsCollector receives verification outcome counters.
// Implementations must never log or store tokens or claims.
type MetricsCollector interface {
	ValidationOK()
	ValidationFailed(reason string)
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpc = c
	}
}

// WithCache replaces the default in-process ristretto cache. A cache may be
// shared between clients of different issuers.
func WithCache(c Cache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// WithFetcher replaces HTTP retrieval of the key document.
func WithFetcher(f Fetcher) Option {
	return func(cl *Client) {
		cl.fetcher = f
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

func WithMetrics(m MetricsCollector) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// WithClock sets the time source for key expiry and claim checks.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}
