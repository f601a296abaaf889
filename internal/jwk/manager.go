package jwk

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keksclan/goAuthn/internal/cache"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultKeyTTL bounds how long a key stays trusted after it was fetched.
	DefaultKeyTTL       = 60 * time.Minute
	defaultFetchTimeout = 5 * time.Second
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// JWKSURL is the key-publication document, usually "<issuer>/jwks".
	JWKSURL string
	// TTL defaults to DefaultKeyTTL.
	TTL time.Duration
	// FetchTimeout bounds one document fetch. Defaults to 5s.
	FetchTimeout time.Duration
	// Fetcher defaults to an HTTPFetcher with the default client.
	Fetcher DocumentFetcher
	// Cache is required.
	Cache  cache.Cache
	Logger *slog.Logger
	Now    func() time.Time
}

// Resolver resolves signing keys from a JWKS document with a TTL-bounded
// cache. Concurrent misses for the same kid share one fetch.
type Resolver struct {
	url          string
	fetcher      DocumentFetcher
	keys         *KeyCache
	fetchTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
	sfGroup      singleflight.Group
}

var _ KeyResolver = (*Resolver)(nil)

func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("jwks url is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultKeyTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewHTTPFetcher(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{
		url:          cfg.JWKSURL,
		fetcher:      cfg.Fetcher,
		keys:         NewKeyCache(cfg.Cache, cfg.JWKSURL, cfg.TTL, cfg.Now),
		fetchTimeout: cfg.FetchTimeout,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}, nil
}

func (r *Resolver) Resolve(ctx context.Context, kid string) (*SigningKey, error) {
	id := kid
	if id == "" {
		id = noKidSlot
	}
	if key, ok := r.keys.Get(id); ok {
		return key, nil
	}

	ch := r.sfGroup.DoChan(id, func() (any, error) {
		// Double-check: a fetch that settled just before we joined may have populated it.
		if key, ok := r.keys.Get(id); ok {
			return key, nil
		}
		// The fetch outlives the first caller's cancellation; other waiters depend on it.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()
		return r.fetchKey(fctx, id, kid == "")
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("await signing key %q: %w", kid, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		key, ok := res.Val.(*SigningKey)
		if !ok {
			return nil, fmt.Errorf("unexpected singleflight result type %T for jwksURL=%s kid=%q", res.Val, r.url, kid)
		}
		return key, nil
	}
}

// fetchKey loads the document, refreshes every usable key it publishes and
// returns the one stored under id. When the token named no kid the document
// must publish exactly one key.
func (r *Resolver) fetchKey(ctx context.Context, id string, anonymous bool) (*SigningKey, error) {
	body, err := r.fetcher.Fetch(ctx, r.url)
	if err != nil {
		r.logger.Warn("jwks fetch failed", "url", r.url, "kid", kidLabel(id), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	set, err := jwk.Parse(body)
	if err != nil {
		r.logger.Warn("jwks parse failed", "url", r.url, "error", err)
		return nil, fmt.Errorf("%w: %w: %w", ErrFetchFailed, ErrInvalidJWKS, err)
	}

	fetchedAt := r.now()
	var (
		found    *SigningKey
		rejected error
	)
	for i := 0; i < set.Len(); i++ {
		k, ok := set.Key(i)
		if !ok {
			continue
		}
		sk, err := toSigningKey(k, fetchedAt)
		if err != nil {
			if !anonymous && k.KeyID() == id {
				rejected = err
			}
			continue
		}
		if sk.KeyID != "" {
			r.keys.Put(sk.KeyID, sk)
		}
		if !anonymous && sk.KeyID == id {
			found = sk
		}
	}
	r.logger.Debug("jwks fetched", "url", r.url, "keys", set.Len())

	if anonymous {
		if set.Len() != 1 {
			return nil, fmt.Errorf("%w: token has no kid and document publishes %d keys", ErrKeyNotFound, set.Len())
		}
		k, _ := set.Key(0)
		sk, err := toSigningKey(k, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeyNotFound, err)
		}
		r.keys.Put(noKidSlot, sk)
		return sk, nil
	}
	if found == nil {
		if rejected != nil {
			return nil, fmt.Errorf("%w: kid %q: %w", ErrKeyNotFound, id, rejected)
		}
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, id)
	}
	return found, nil
}

func kidLabel(id string) string {
	if id == noKidSlot {
		return "(none)"
	}
	return id
}

// toSigningKey accepts only asymmetric public verification keys.
func toSigningKey(k jwk.Key, fetchedAt time.Time) (*SigningKey, error) {
	if k.KeyUsage() == string(jwk.ForEncryption) {
		return nil, fmt.Errorf("%w: key %q is published for encryption", ErrUnsupportedKeyType, k.KeyID())
	}
	var raw any
	if err := k.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to get raw key: %w", err)
	}
	switch raw.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, raw)
	}
	var alg string
	if a := k.Algorithm(); a != nil {
		alg = a.String()
	}
	return &SigningKey{
		KeyID:     k.KeyID(),
		Algorithm: alg,
		Key:       raw,
		FetchedAt: fetchedAt,
	}, nil
}
