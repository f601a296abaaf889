package jwk

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPFetcher(t *testing.T) {
	priv := generateRSAKey(t)
	doc := jwksDocument(t, map[string]any{"k1": &priv.PublicKey})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jwks":
			w.Header().Set("Content-Type", "application/json")
			w.Write(doc)
		case "/huge":
			w.Write([]byte(strings.Repeat("x", maxJWKSResponseSize+10)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	t.Run("ok", func(t *testing.T) {
		body, err := NewHTTPFetcher(nil).Fetch(t.Context(), server.URL+"/jwks")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if string(body) != string(doc) {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("non-200 status", func(t *testing.T) {
		_, err := NewHTTPFetcher(nil).Fetch(t.Context(), server.URL+"/missing")
		if err == nil || !strings.Contains(err.Error(), "status 404") {
			t.Fatalf("expected status error, got %v", err)
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		_, err := NewHTTPFetcher(nil).Fetch(t.Context(), server.URL+"/huge")
		if err == nil || !strings.Contains(err.Error(), "exceeds") {
			t.Fatalf("expected size error, got %v", err)
		}
	})
}

func TestHTTPFetcherAuth(t *testing.T) {
	tests := []struct {
		name   string
		auth   AuthConfig
		header string
		want   string
	}{
		{
			name:   "basic",
			auth:   AuthConfig{Kind: AuthKindBasic, Username: "svc", Password: "pw"},
			header: "Authorization",
			want:   "Basic c3ZjOnB3",
		},
		{
			name:   "bearer",
			auth:   AuthConfig{Kind: AuthKindBearer, BearerToken: "tok"},
			header: "Authorization",
			want:   "Bearer tok",
		},
		{
			name:   "custom header",
			auth:   AuthConfig{Kind: AuthKindHeader, HeaderName: "X-Api-Key", HeaderValue: "abc"},
			header: "X-Api-Key",
			want:   "abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(tt.header)
				w.Write([]byte(`{"keys":[]}`))
			}))
			defer server.Close()

			f := NewHTTPFetcher(nil)
			f.SetAuth(tt.auth)
			f.SetExtraHeaders(map[string]string{"X-Tenant": "acme"})
			if _, err := f.Fetch(t.Context(), server.URL); err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestHTTPFetcherThroughResolver(t *testing.T) {
	priv := generateRSAKey(t)
	doc := jwksDocument(t, map[string]any{"k1": &priv.PublicKey})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jwks" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(doc)
	}))
	defer server.Close()

	r, err := NewResolver(ResolverConfig{
		JWKSURL: server.URL + "/jwks",
		Cache:   newMapCache(),
		Fetcher: NewHTTPFetcher(&http.Client{Timeout: time.Second}),
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := r.Resolve(t.Context(), "k1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	server.Close()
	r2, _ := NewResolver(ResolverConfig{JWKSURL: server.URL + "/jwks", Cache: newMapCache()})
	if _, err := r2.Resolve(t.Context(), "k1"); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed against closed server, got %v", err)
	}
}
