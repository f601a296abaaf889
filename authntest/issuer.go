// Package authntest provides an in-process issuer for tests of code that
// uses authn. It serves a key-publication document at /jwks and mints tokens
// that verify against it.
//
//	iss := authntest.NewIssuer("myapp.example.com")
//	defer iss.Close()
//
//	client, _ := authn.New(authn.Config{Issuer: iss.URL(), Audiences: []string{iss.Audience()}})
//	sub, err := client.SubjectFrom(ctx, iss.TokenFor("user-123"))
package authntest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Issuer is a test authority with one active RSA signing key.
type Issuer struct {
	server   *httptest.Server
	audience string

	mu      sync.Mutex
	key     *rsa.PrivateKey
	kid     string
	version int
	failing bool

	requests atomic.Int32
}

// NewIssuer starts an issuer whose tokens carry audience.
func NewIssuer(audience string) *Issuer {
	iss := &Issuer{audience: audience}
	iss.Rotate()

	mux := http.NewServeMux()
	mux.HandleFunc("/jwks", iss.handleJWKS)
	iss.server = httptest.NewServer(mux)
	return iss
}

// URL is the issuer identifier and base URL.
func (iss *Issuer) URL() string { return iss.server.URL }

func (iss *Issuer) Audience() string { return iss.audience }

// KeyID returns the kid of the active signing key.
func (iss *Issuer) KeyID() string {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	return iss.kid
}

// JWKSRequests counts requests served at /jwks.
func (iss *Issuer) JWKSRequests() int { return int(iss.requests.Load()) }

// SetFailing makes /jwks answer 503 until called with false.
func (iss *Issuer) SetFailing(failing bool) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.failing = failing
}

// Rotate replaces the signing key; only the new key is published afterwards.
func (iss *Issuer) Rotate() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("authntest: generate RSA key: " + err.Error())
	}
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.version++
	iss.key = key
	iss.kid = fmt.Sprintf("test-key-%d", iss.version)
}

func (iss *Issuer) Close() {
	if iss.server != nil {
		iss.server.Close()
	}
}

// TokenFor mints a valid token for sub that expires in one hour.
func (iss *Issuer) TokenFor(sub string) string {
	return iss.Mint(map[string]any{"sub": sub})
}

// Mint signs claims with RS256 and the active key. iss, aud, iat and exp are
// filled in unless present; a nil value removes the claim.
func (iss *Issuer) Mint(claims map[string]any) string {
	now := time.Now()
	mc := jwt.MapClaims{
		"iss": iss.URL(),
		"aud": iss.audience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		if v == nil {
			delete(mc, k)
			continue
		}
		mc[k] = v
	}

	iss.mu.Lock()
	key, kid := iss.key, iss.kid
	iss.mu.Unlock()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, mc)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		panic("authntest: sign token: " + err.Error())
	}
	return s
}

func (iss *Issuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	iss.requests.Add(1)

	iss.mu.Lock()
	failing := iss.failing
	pub, kid := &iss.key.PublicKey, iss.kid
	iss.mu.Unlock()

	if failing {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	key, err := jwk.FromRaw(pub)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = key.Set(jwk.KeyIDKey, kid)
	_ = key.Set(jwk.AlgorithmKey, "RS256")
	_ = key.Set(jwk.KeyUsageKey, "sig")
	set := jwk.NewSet()
	_ = set.AddKey(key)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}
