package authn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	icache "github.com/keksclan/goAuthn/internal/cache"
	"github.com/keksclan/goAuthn/internal/jwk"
	"github.com/keksclan/goAuthn/internal/token"
)

// Result contains the validated claims of a token.
//
// Concurrency: Result is immutable once returned.
type Result struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Claims    map[string]any
}

// Client verifies identity tokens issued by one configured authority.
//
// Concurrency: Client is safe for concurrent use if the provided Cache, Fetcher
// and HTTP client are (the defaults are). The key cache is the only shared
// mutable state.
type Client struct {
	cfg     Config
	httpc   *http.Client
	cache   Cache
	fetcher Fetcher
	logger  *slog.Logger
	metrics MetricsCollector
	now     func() time.Time

	ownedCache *icache.RistrettoCache
	verifier   *token.Verifier
}

// New creates a Client for cfg. Defaults are applied before validation.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if c.cache == nil {
		rc, err := icache.NewRistrettoCache(icache.RistrettoConfig{})
		if err != nil {
			return nil, err
		}
		c.cache = rc
		c.ownedCache = rc
	}
	if c.fetcher == nil {
		f := jwk.NewHTTPFetcher(c.httpc)
		if cfg.JWKS.Auth.Kind != "" {
			f.SetAuth(jwk.AuthConfig{
				Kind:        jwk.AuthKind(cfg.JWKS.Auth.Kind),
				Username:    cfg.JWKS.Auth.Username,
				Password:    cfg.JWKS.Auth.Password,
				BearerToken: cfg.JWKS.Auth.BearerToken,
				HeaderName:  cfg.JWKS.Auth.HeaderName,
				HeaderValue: cfg.JWKS.Auth.HeaderValue,
			})
		}
		if len(cfg.JWKS.ExtraHeaders) > 0 {
			f.SetExtraHeaders(cfg.JWKS.ExtraHeaders)
		}
		c.fetcher = f
	}

	resolver, err := jwk.NewResolver(jwk.ResolverConfig{
		JWKSURL:      cfg.JWKSURL,
		TTL:          cfg.KeyCacheTTL,
		FetchTimeout: cfg.FetchTimeout,
		Fetcher:      c.fetcher,
		Cache:        c.cache,
		Logger:       c.logger.With("issuer", cfg.Issuer),
		Now:          c.now,
	})
	if err != nil {
		return nil, fmt.Errorf("init key resolver: %w", err)
	}

	v, err := token.New(token.Config{
		Issuer:      cfg.Issuer,
		Audiences:   cfg.Audiences,
		AllowedAlgs: cfg.AllowedAlgs,
		ClockSkew:   cfg.ClockSkew,
		Now:         c.now,
		Metrics:     c.metrics,
	}, resolver)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.verifier = v

	return c, nil
}

// Verify validates tokenStr and returns its claims.
func (c *Client) Verify(ctx context.Context, tokenStr string) (*Result, error) {
	claims, err := c.verifier.Verify(ctx, tokenStr)
	if err != nil {
		c.logger.Debug("token rejected", "error", err, "retryable", IsRetryable(err))
		return nil, err
	}
	return &Result{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		ExpiresAt: claims.ExpiresAt,
		IssuedAt:  claims.IssuedAt,
		Claims:    claims.RawMap,
	}, nil
}

// SubjectFrom returns the subject of a valid token.
//
// An empty token yields ("", nil) without any verification, so callers can
// tell "no token supplied" apart from "token supplied but invalid", which
// always returns a non-nil error.
func (c *Client) SubjectFrom(ctx context.Context, tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", nil
	}
	res, err := c.Verify(ctx, tokenStr)
	if err != nil {
		return "", err
	}
	return res.Subject, nil
}

// Issuer returns the configured issuer.
func (c *Client) Issuer() string { return c.cfg.Issuer }

// Close releases the default cache. It is a no-op when WithCache was used.
func (c *Client) Close() {
	if c.ownedCache != nil {
		c.ownedCache.Close()
	}
}
