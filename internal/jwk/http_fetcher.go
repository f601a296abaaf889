package jwk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxJWKSResponseSize limits the size of JWKS HTTP responses to prevent memory bombs.
const maxJWKSResponseSize = 1 << 20 // 1 MB

// AuthKind selects the authentication method for JWKS requests.
type AuthKind string

const (
	AuthKindNone   AuthKind = "none"
	AuthKindBasic  AuthKind = "basic"
	AuthKindBearer AuthKind = "bearer"
	AuthKindHeader AuthKind = "header"
)

// AuthConfig holds authentication settings for JWKS fetching.
type AuthConfig struct {
	Kind        AuthKind
	Username    string
	Password    string
	BearerToken string
	HeaderName  string
	HeaderValue string
}

// HTTPFetcher fetches documents with a plain GET. It is safe for concurrent use
// once configured.
type HTTPFetcher struct {
	httpc        *http.Client
	auth         AuthConfig
	extraHeaders map[string]string
}

// NewHTTPFetcher returns a fetcher using c, or a client with a 5s timeout when c is nil.
func NewHTTPFetcher(c *http.Client) *HTTPFetcher {
	if c == nil {
		c = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPFetcher{httpc: c}
}

// SetAuth configures authentication for JWKS requests.
func (f *HTTPFetcher) SetAuth(auth AuthConfig) {
	f.auth = auth
}

// SetExtraHeaders configures additional headers for JWKS requests.
func (f *HTTPFetcher) SetExtraHeaders(headers map[string]string) {
	f.extraHeaders = headers
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	f.applyAuth(req)
	for k, v := range f.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxJWKSResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", maxJWKSResponseSize)
	}
	return body, nil
}

func (f *HTTPFetcher) applyAuth(req *http.Request) {
	switch f.auth.Kind {
	case AuthKindBasic:
		req.SetBasicAuth(f.auth.Username, f.auth.Password)
	case AuthKindBearer:
		req.Header.Set("Authorization", "Bearer "+f.auth.BearerToken)
	case AuthKindHeader:
		if f.auth.HeaderName != "" {
			req.Header.Set(f.auth.HeaderName, f.auth.HeaderValue)
		}
	}
}
