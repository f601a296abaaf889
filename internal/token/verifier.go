// Package token verifies compact signed identity tokens against keys
// resolved from a key-publication document.
//
// Verification runs in a fixed order and stops at the first failure:
// structure, header, algorithm admissibility, key resolution, signature,
// then issuer, audience and expiry. The payload is decoded only after the
// signature over the original header and payload bytes has verified.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/keksclan/goAuthn/internal/jwk"
)

// maxTokenSize rejects oversized input before any decoding.
const maxTokenSize = 16 << 10

// MetricsCollector receives validation outcome counters.
// All methods must be safe for concurrent use.
// Implementations must never log or store tokens or claims.
type MetricsCollector interface {
	ValidationOK()
	ValidationFailed(reason string)
}

// Failure reason constants used with MetricsCollector.
const (
	FailReasonMissing   = "missing"
	FailReasonMalformed = "malformed"
	FailReasonUnsigned  = "unsigned"
	FailReasonAlg       = "alg"
	FailReasonKey       = "key"
	FailReasonSignature = "signature"
	FailReasonIssuer    = "iss"
	FailReasonAudience  = "aud"
	FailReasonExpired   = "exp"
)

type Config struct {
	// Issuer must equal the token's iss claim exactly.
	Issuer string
	// Audiences are matched against the token's aud claim; one match suffices.
	Audiences []string
	// AllowedAlgs defaults to DefaultAllowedAlgs. Only asymmetric algorithms are accepted.
	AllowedAlgs []string
	// ClockSkew tolerated on exp. Zero means exp must be strictly in the future.
	ClockSkew time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// Metrics receives optional validation counters. No-op when nil.
	Metrics MetricsCollector
}

// Header holds the envelope fields the verifier acts on.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid,omitempty"`
	Typ string `json:"typ,omitempty"`
}

// Claims are the validated payload fields of a token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	// IssuedAt is informational and zero when the token has no iat.
	IssuedAt time.Time
	RawMap   map[string]any
}

// Verifier verifies tokens. It is immutable after New and safe for concurrent use.
type Verifier struct {
	cfg         Config
	keys        jwk.KeyResolver
	methods     map[string]jwt.SigningMethod
	audienceSet map[string]struct{}
	parser      *jwt.Parser
	now         func() time.Time
	metrics     MetricsCollector
}

func New(cfg Config, keys jwk.KeyResolver) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("key resolver is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if len(cfg.Audiences) == 0 {
		return nil, errors.New("at least one audience is required")
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = DefaultAllowedAlgs
	}
	v := &Verifier{
		cfg:         cfg,
		keys:        keys,
		methods:     make(map[string]jwt.SigningMethod, len(cfg.AllowedAlgs)),
		audienceSet: make(map[string]struct{}, len(cfg.Audiences)),
		parser:      jwt.NewParser(),
		now:         cfg.Now,
		metrics:     cfg.Metrics,
	}
	for _, alg := range cfg.AllowedAlgs {
		m, ok := asymmetricMethods[alg]
		if !ok {
			return nil, fmt.Errorf("algorithm %q cannot be allowed: only asymmetric signing algorithms are supported", alg)
		}
		v.methods[alg] = m
	}
	for _, a := range cfg.Audiences {
		v.audienceSet[a] = struct{}{}
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v, nil
}

// Verify checks tokenStr and returns its claims. The returned error wraps
// exactly one of the package's Err* values.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, v.fail(FailReasonMissing, ErrTokenMissing)
	}

	header, segments, err := v.split(tokenStr)
	if err != nil {
		return nil, v.fail(FailReasonMalformed, err)
	}

	method, err := v.admit(header.Alg)
	if err != nil {
		if errors.Is(err, ErrSignatureRequired) {
			return nil, v.fail(FailReasonUnsigned, err)
		}
		return nil, v.fail(FailReasonAlg, err)
	}

	if len(segments.signature) == 0 {
		return nil, v.fail(FailReasonUnsigned, ErrSignatureRequired)
	}

	key, err := v.keys.Resolve(ctx, header.Kid)
	if err != nil {
		return nil, v.fail(FailReasonKey, fmt.Errorf("%w: %w", ErrKeyResolutionFailed, err))
	}

	if !v.signatureValid(method, key, tokenStr, segments.signature) {
		return nil, v.fail(FailReasonSignature, ErrInvalidSignature)
	}

	mc, err := decodeClaims(segments.payload)
	if err != nil {
		return nil, v.fail(FailReasonMalformed, err)
	}
	claims, reason, err := v.checkClaims(mc)
	if err != nil {
		return nil, v.fail(reason, err)
	}

	if v.metrics != nil {
		v.metrics.ValidationOK()
	}
	return claims, nil
}

type decodedSegments struct {
	payload   []byte
	signature []byte
}

// split performs the structural check and decodes the header.
func (v *Verifier) split(tokenStr string) (*Header, *decodedSegments, error) {
	if len(tokenStr) > maxTokenSize {
		return nil, nil, fmt.Errorf("%w: token exceeds %d bytes", ErrTokenMalformed, maxTokenSize)
	}
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrTokenMalformed, len(parts))
	}
	raw := make([][]byte, 3)
	for i, p := range parts {
		if p == "" {
			// An empty signature is how unsigned tokens are encoded; admit reports it.
			if i == 2 {
				continue
			}
			return nil, nil, fmt.Errorf("%w: segment %d is empty", ErrTokenMalformed, i)
		}
		b, err := v.parser.DecodeSegment(p)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: segment %d is not base64url: %w", ErrTokenMalformed, i, err)
		}
		raw[i] = b
	}

	var h Header
	if err := json.Unmarshal(raw[0], &h); err != nil {
		return nil, nil, fmt.Errorf("%w: header: %w", ErrTokenMalformed, err)
	}
	return &h, &decodedSegments{payload: raw[1], signature: raw[2]}, nil
}

// admit maps the declared algorithm to a pinned signing method. It runs
// before any key is resolved.
func (v *Verifier) admit(alg string) (jwt.SigningMethod, error) {
	if isUnsigned(alg) {
		return nil, ErrSignatureRequired
	}
	m, ok := v.methods[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithmNotAllowed, alg)
	}
	return m, nil
}

// signatureValid reports only success or failure; the cause is never exposed.
func (v *Verifier) signatureValid(method jwt.SigningMethod, key *jwk.SigningKey, tokenStr string, sig []byte) bool {
	if key == nil || !keyFitsMethod(method.Alg(), key.Key) {
		return false
	}
	if key.Algorithm != "" && key.Algorithm != method.Alg() {
		return false
	}
	signingString := tokenStr[:strings.LastIndexByte(tokenStr, '.')]
	return method.Verify(signingString, sig, key.Key) == nil
}

func decodeClaims(payload []byte) (jwt.MapClaims, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var mc jwt.MapClaims
	if err := dec.Decode(&mc); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrTokenMalformed, err)
	}
	if mc == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrTokenMalformed)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after payload object", ErrTokenMalformed)
	}
	return mc, nil
}

func (v *Verifier) checkClaims(mc jwt.MapClaims) (*Claims, string, error) {
	now := v.now()
	res := &Claims{RawMap: mc}

	iss, err := mc.GetIssuer()
	if err != nil || iss != v.cfg.Issuer {
		return nil, FailReasonIssuer, fmt.Errorf("%w. expected: %s", ErrIssuerInvalid, v.cfg.Issuer)
	}
	res.Issuer = iss

	aud, err := mc.GetAudience()
	if err != nil || !v.audienceMatches(aud) {
		return nil, FailReasonAudience, fmt.Errorf("%w. expected: %s", ErrAudienceInvalid, strings.Join(v.cfg.Audiences, " or "))
	}
	res.Audience = aud

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, FailReasonMalformed, fmt.Errorf("%w: exp: %w", ErrTokenMalformed, err)
	}
	if exp == nil {
		return nil, FailReasonExpired, fmt.Errorf("%w: exp claim is required", ErrTokenExpired)
	}
	if !now.Before(exp.Add(v.cfg.ClockSkew)) {
		return nil, FailReasonExpired, ErrTokenExpired
	}
	res.ExpiresAt = exp.Time

	iat, err := mc.GetIssuedAt()
	if err != nil {
		return nil, FailReasonMalformed, fmt.Errorf("%w: iat: %w", ErrTokenMalformed, err)
	}
	if iat != nil {
		res.IssuedAt = iat.Time
	}

	res.Subject = subjectOf(mc)
	return res, "", nil
}

func (v *Verifier) audienceMatches(tokenAud []string) bool {
	for _, a := range tokenAud {
		if _, ok := v.audienceSet[a]; ok {
			return true
		}
	}
	return false
}

// subjectOf accepts string and numeric sub claims.
func subjectOf(mc jwt.MapClaims) string {
	switch sub := mc["sub"].(type) {
	case string:
		return sub
	case json.Number:
		return sub.String()
	}
	return ""
}

func (v *Verifier) fail(reason string, err error) error {
	if v.metrics != nil {
		v.metrics.ValidationFailed(reason)
	}
	return err
}
