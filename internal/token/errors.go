package token

import "errors"

// Verification failures. Each is terminal for the token it was returned for;
// only a key-resolution failure wrapping jwk.ErrFetchFailed may succeed on retry.
var (
	ErrTokenMissing        = errors.New("token must be provided")
	ErrTokenMalformed      = errors.New("token malformed")
	ErrSignatureRequired   = errors.New("token signature is required")
	ErrAlgorithmNotAllowed = errors.New("token algorithm not allowed")
	ErrKeyResolutionFailed = errors.New("signing key resolution failed")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrIssuerInvalid       = errors.New("token issuer invalid")
	ErrAudienceInvalid     = errors.New("token audience invalid")
	ErrTokenExpired        = errors.New("token expired")
)
