// Package authnconfig loads authn.Config from Go values, JSON files, Lua
// files or environment variables. Every loader applies defaults and
// validates the result.
package authnconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/keksclan/goAuthn/authn"
)

// Loader loads an authn.Config from a source.
type Loader interface {
	Load(ctx context.Context) (*authn.Config, error)
}

func finish(cfg *authn.Config) (*authn.Config, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// goLoader returns a static config.
type goLoader struct {
	cfg authn.Config
}

// FromGo creates a Loader that returns the provided config directly.
func FromGo(cfg authn.Config) Loader {
	return &goLoader{cfg: cfg}
}

func (l *goLoader) Load(_ context.Context) (*authn.Config, error) {
	cfg := l.cfg
	return finish(&cfg)
}

// jsonLoader loads config from a JSON file.
type jsonLoader struct {
	path string
}

// FromJSONFile creates a Loader that reads config from a JSON file.
func FromJSONFile(path string) Loader {
	return &jsonLoader{path: path}
}

// audiences accepts either a single string or a list.
type audiences []string

func (a *audiences) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = audiences{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("audiences must be a string or a list of strings: %w", err)
	}
	*a = list
	return nil
}

// jsonConfig mirrors authn.Config for JSON deserialization.
type jsonConfig struct {
	Issuer             string    `json:"issuer"`
	Audiences          audiences `json:"audiences"`
	JWKSURL            string    `json:"jwks_url"`
	KeyCacheTTLMinutes int       `json:"key_cache_ttl_minutes"`
	FetchTimeoutMs     int       `json:"fetch_timeout_ms"`
	AllowedAlgs        []string  `json:"allowed_algs"`
	ClockSkewSec       int       `json:"clock_skew_sec"`
	JWKS               jsonJWKS  `json:"jwks"`
}

type jsonJWKS struct {
	Auth         jsonJWKSAuth      `json:"auth"`
	ExtraHeaders map[string]string `json:"extra_headers"`
}

type jsonJWKSAuth struct {
	Kind        string `json:"kind"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	HeaderName  string `json:"header_name"`
	HeaderValue string `json:"header_value"`
	BearerToken string `json:"bearer_token"`
}

func (l *jsonLoader) Load(_ context.Context) (*authn.Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read json config: %w", err)
	}
	return LoadJSON(data)
}

// LoadJSON parses a JSON config document.
func LoadJSON(data []byte) (*authn.Config, error) {
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	cfg := authn.Config{
		Issuer:       jc.Issuer,
		Audiences:    jc.Audiences,
		JWKSURL:      jc.JWKSURL,
		KeyCacheTTL:  time.Duration(jc.KeyCacheTTLMinutes) * time.Minute,
		FetchTimeout: time.Duration(jc.FetchTimeoutMs) * time.Millisecond,
		AllowedAlgs:  jc.AllowedAlgs,
		ClockSkew:    time.Duration(jc.ClockSkewSec) * time.Second,
		JWKS: authn.JWKSConfig{
			Auth: authn.JWKSAuth{
				Kind:        authn.JWKSAuthKind(jc.JWKS.Auth.Kind),
				Username:    jc.JWKS.Auth.Username,
				Password:    jc.JWKS.Auth.Password,
				BearerToken: jc.JWKS.Auth.BearerToken,
				HeaderName:  jc.JWKS.Auth.HeaderName,
				HeaderValue: jc.JWKS.Auth.HeaderValue,
			},
			ExtraHeaders: jc.JWKS.ExtraHeaders,
		},
	}
	return finish(&cfg)
}
