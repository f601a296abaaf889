package common

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/keksclan/goAuthn/authn"
)

// ErrUnsupportedScheme is returned for Authorization values that are not
// bearer credentials.
var ErrUnsupportedScheme = errors.New("unsupported authorization scheme")

// SubjectResolver is satisfied by *authn.Client.
type SubjectResolver interface {
	SubjectFrom(ctx context.Context, token string) (string, error)
}

// BearerToken extracts the token from an Authorization header value.
// A blank value yields ("", nil). The scheme name is case-insensitive.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil
	}
	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrUnsupportedScheme
	}
	return strings.TrimSpace(tok), nil
}

// Authenticate returns the subject for an Authorization header value.
//
// Without credentials it returns ("", nil) when allowAnonymous is set and
// authn.ErrTokenMissing otherwise.
func Authenticate(ctx context.Context, r SubjectResolver, header string, allowAnonymous bool) (string, error) {
	tok, err := BearerToken(header)
	if err != nil {
		return "", err
	}
	if tok == "" {
		if allowAnonymous {
			return "", nil
		}
		return "", authn.ErrTokenMissing
	}
	return r.SubjectFrom(ctx, tok)
}

// HTTPStatus maps an authentication error to a response status. Failures to
// fetch signing keys are the server's problem and map to 503.
func HTTPStatus(err error) int {
	if authn.IsRetryable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusUnauthorized
}

// PublicMessage is the error text sent to clients. Key fetch details stay
// in server logs.
func PublicMessage(err error) string {
	switch {
	case authn.IsRetryable(err):
		return "signing keys unavailable"
	case errors.Is(err, authn.ErrTokenMissing):
		return "missing authorization header"
	default:
		return err.Error()
	}
}
