package jwk

import (
	"context"
	"crypto"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned when the key-publication document was fetched
	// but holds no usable entry for the requested kid.
	ErrKeyNotFound = errors.New("signing key not found")
	// ErrFetchFailed wraps transport, status and parse failures of the
	// key-publication document. It is the only retryable resolution failure.
	ErrFetchFailed        = errors.New("fetch signing keys failed")
	ErrInvalidJWKS        = errors.New("invalid JWKS")
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)

// noKidSlot is the cache and in-flight key for tokens that carry no kid.
// It contains a NUL byte so no published kid can collide with it.
const noKidSlot = "\x00no-kid"

// SigningKey is public key material published under KeyID.
// It is never mutated after creation; a fresher fetch replaces it.
type SigningKey struct {
	KeyID string
	// Algorithm is the JWK "alg" member, empty when the document omits it.
	Algorithm string
	Key       crypto.PublicKey
	FetchedAt time.Time
}

// KeyResolver maps a key identifier to currently valid public key material.
type KeyResolver interface {
	// Resolve returns the key published under kid. An empty kid means the
	// token did not name one.
	Resolve(ctx context.Context, kid string) (*SigningKey, error)
}

// DocumentFetcher retrieves a raw JSON document by URL.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
