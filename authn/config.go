package authn

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/keksclan/goAuthn/internal/token"
)

const (
	// DefaultKeyCacheTTL bounds how long a fetched signing key is trusted.
	DefaultKeyCacheTTL  = 60 * time.Minute
	DefaultFetchTimeout = 5 * time.Second
)

// Config describes the trusted issuer and the audiences this service accepts.
//
// Concurrency: Config is copied by New; mutating it afterwards has no effect.
type Config struct {
	// Issuer is the authority's base URL, matched exactly against iss.
	Issuer string
	// Audiences accepted in aud. At least one is required; one match suffices.
	Audiences []string

	// JWKSURL defaults to Issuer + "/jwks".
	JWKSURL string
	// KeyCacheTTL defaults to DefaultKeyCacheTTL.
	KeyCacheTTL time.Duration
	// FetchTimeout bounds one key document fetch. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration

	// AllowedAlgs defaults to ["RS256"]. Only asymmetric algorithms are accepted.
	AllowedAlgs []string
	// ClockSkew tolerated on exp. Zero by default.
	ClockSkew time.Duration

	JWKS JWKSConfig
}

// JWKSAuthKind selects how requests to the key document authenticate.
type JWKSAuthKind string

const (
	JWKSAuthNone   JWKSAuthKind = "none"
	JWKSAuthBasic  JWKSAuthKind = "basic"
	JWKSAuthBearer JWKSAuthKind = "bearer"
	JWKSAuthHeader JWKSAuthKind = "header"
)

// JWKSAuth holds credentials for fetching the key document.
type JWKSAuth struct {
	Kind        JWKSAuthKind
	Username    string
	Password    string
	BearerToken string
	HeaderName  string
	HeaderValue string
}

type JWKSConfig struct {
	Auth         JWKSAuth
	ExtraHeaders map[string]string
}

// SetDefaults fills zero fields with their documented defaults.
func (c *Config) SetDefaults() {
	if c.JWKSURL == "" && c.Issuer != "" {
		c.JWKSURL = strings.TrimSuffix(c.Issuer, "/") + "/jwks"
	}
	if c.KeyCacheTTL == 0 {
		c.KeyCacheTTL = DefaultKeyCacheTTL
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if len(c.AllowedAlgs) == 0 {
		c.AllowedAlgs = append([]string(nil), token.DefaultAllowedAlgs...)
	}
}

func (c Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("%w: issuer is required", ErrInvalidConfig)
	}
	if len(c.Audiences) == 0 {
		return fmt.Errorf("%w: at least one audience is required", ErrInvalidConfig)
	}
	for _, a := range c.Audiences {
		if a == "" {
			return fmt.Errorf("%w: empty audience", ErrInvalidConfig)
		}
	}
	if c.JWKSURL != "" {
		u, err := url.Parse(c.JWKSURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: jwks url %q is not absolute", ErrInvalidConfig, c.JWKSURL)
		}
	}
	if c.KeyCacheTTL < 0 {
		return fmt.Errorf("%w: key cache ttl must not be negative", ErrInvalidConfig)
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("%w: clock skew must not be negative", ErrInvalidConfig)
	}
	switch c.JWKS.Auth.Kind {
	case "", JWKSAuthNone, JWKSAuthBasic, JWKSAuthBearer, JWKSAuthHeader:
	default:
		return fmt.Errorf("%w: unsupported jwks auth kind %q", ErrInvalidConfig, c.JWKS.Auth.Kind)
	}
	return nil
}
