package authn

import (
	"errors"

	"github.com/keksclan/goAuthn/internal/jwk"
	"github.com/keksclan/goAuthn/internal/token"
)

// Verification failures returned by Client. Match them with errors.Is; the
// error text carries the detail (expected issuer or audience, fetch cause).
var (
	ErrTokenMissing        = token.ErrTokenMissing
	ErrTokenMalformed      = token.ErrTokenMalformed
	ErrSignatureRequired   = token.ErrSignatureRequired
	ErrAlgorithmNotAllowed = token.ErrAlgorithmNotAllowed
	ErrKeyResolutionFailed = token.ErrKeyResolutionFailed
	ErrKeyNotFound         = jwk.ErrKeyNotFound
	ErrFetchFailed         = jwk.ErrFetchFailed
	ErrInvalidSignature    = token.ErrInvalidSignature
	ErrIssuerInvalid       = token.ErrIssuerInvalid
	ErrAudienceInvalid     = token.ErrAudienceInvalid
	ErrTokenExpired        = token.ErrTokenExpired
)

// ErrInvalidConfig is returned by Config.Validate and New.
var ErrInvalidConfig = errors.New("invalid config")

// IsRetryable reports whether verifying the same token later may succeed.
// Only a failure to fetch the key-publication document qualifies.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrFetchFailed)
}
