package token

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAllowedAlgs is used when Config.AllowedAlgs is empty.
var DefaultAllowedAlgs = []string{"RS256"}

// asymmetricMethods lists every algorithm that may appear on an allow-list.
// Symmetric (HS*) and unsigned algorithms are never admissible.
var asymmetricMethods = map[string]jwt.SigningMethod{
	"RS256": jwt.SigningMethodRS256,
	"RS384": jwt.SigningMethodRS384,
	"RS512": jwt.SigningMethodRS512,
	"PS256": jwt.SigningMethodPS256,
	"PS384": jwt.SigningMethodPS384,
	"PS512": jwt.SigningMethodPS512,
	"ES256": jwt.SigningMethodES256,
	"ES384": jwt.SigningMethodES384,
	"ES512": jwt.SigningMethodES512,
	"EdDSA": jwt.SigningMethodEdDSA,
}

// esCurves pins each ECDSA algorithm to its curve.
var esCurves = map[string]elliptic.Curve{
	"ES256": elliptic.P256(),
	"ES384": elliptic.P384(),
	"ES512": elliptic.P521(),
}

func isUnsigned(alg string) bool {
	return alg == "" || strings.EqualFold(alg, "none")
}

// keyFitsMethod reports whether key belongs to the family alg signs with.
func keyFitsMethod(alg string, key crypto.PublicKey) bool {
	switch {
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"):
		_, ok := key.(*rsa.PublicKey)
		return ok
	case strings.HasPrefix(alg, "ES"):
		k, ok := key.(*ecdsa.PublicKey)
		return ok && k.Curve == esCurves[alg]
	case alg == "EdDSA":
		_, ok := key.(ed25519.PublicKey)
		return ok
	}
	return false
}
