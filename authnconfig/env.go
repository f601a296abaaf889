package authnconfig

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keksclan/goAuthn/authn"
	"github.com/spf13/viper"
)

// Environment keys read by FromEnv, relative to the prefix.
const (
	envIssuer          = "issuer"
	envAudiences       = "audiences"
	envJWKSURL         = "jwks_url"
	envKeyCacheTTL     = "key_cache_ttl_minutes"
	envFetchTimeout    = "fetch_timeout_ms"
	envAllowedAlgs     = "allowed_algs"
	envClockSkew       = "clock_skew_sec"
	envAuthKind        = "jwks_auth_kind"
	envAuthUsername    = "jwks_auth_username"
	envAuthPassword    = "jwks_auth_password"
	envAuthBearerToken = "jwks_auth_bearer_token"
	envAuthHeaderName  = "jwks_auth_header_name"
	envAuthHeaderValue = "jwks_auth_header_value"
	envExtraHeaders    = "jwks_extra_headers"
)

var envKeys = []string{
	envIssuer, envAudiences, envJWKSURL, envKeyCacheTTL, envFetchTimeout, envAllowedAlgs, envClockSkew,
	envAuthKind, envAuthUsername, envAuthPassword, envAuthBearerToken, envAuthHeaderName, envAuthHeaderValue,
	envExtraHeaders,
}

type envLoader struct {
	prefix string
}

// FromEnv creates a Loader reading PREFIX_ISSUER, PREFIX_AUDIENCES (comma
// separated), PREFIX_JWKS_URL, PREFIX_KEY_CACHE_TTL_MINUTES,
// PREFIX_FETCH_TIMEOUT_MS, PREFIX_ALLOWED_ALGS and PREFIX_CLOCK_SKEW_SEC.
//
// Key document authentication uses PREFIX_JWKS_AUTH_KIND plus
// PREFIX_JWKS_AUTH_USERNAME/_PASSWORD, _BEARER_TOKEN or _HEADER_NAME/_HEADER_VALUE.
// PREFIX_JWKS_EXTRA_HEADERS holds comma separated Name=Value pairs.
func FromEnv(prefix string) Loader {
	return &envLoader{prefix: prefix}
}

func (l *envLoader) Load(_ context.Context) (*authn.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(l.prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	extra, err := parseHeaderPairs(v.GetString(envExtraHeaders))
	if err != nil {
		return nil, fmt.Errorf("config validation: %w: %w", authn.ErrInvalidConfig, err)
	}

	cfg := authn.Config{
		Issuer:       v.GetString(envIssuer),
		Audiences:    splitList(v.GetString(envAudiences)),
		JWKSURL:      v.GetString(envJWKSURL),
		KeyCacheTTL:  time.Duration(v.GetInt(envKeyCacheTTL)) * time.Minute,
		FetchTimeout: time.Duration(v.GetInt(envFetchTimeout)) * time.Millisecond,
		AllowedAlgs:  splitList(v.GetString(envAllowedAlgs)),
		ClockSkew:    time.Duration(v.GetInt(envClockSkew)) * time.Second,
		JWKS: authn.JWKSConfig{
			Auth: authn.JWKSAuth{
				Kind:        authn.JWKSAuthKind(v.GetString(envAuthKind)),
				Username:    v.GetString(envAuthUsername),
				Password:    v.GetString(envAuthPassword),
				BearerToken: v.GetString(envAuthBearerToken),
				HeaderName:  v.GetString(envAuthHeaderName),
				HeaderValue: v.GetString(envAuthHeaderValue),
			},
			ExtraHeaders: extra,
		},
	}
	return finish(&cfg)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseHeaderPairs parses "Name=Value,Other=Value".
func parseHeaderPairs(s string) (map[string]string, error) {
	pairs := splitList(s)
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("extra header %q is not Name=Value", p)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}
