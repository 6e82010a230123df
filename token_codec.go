package auth

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenAlgorithm = "HS256"
	tokenType      = "JWT"
	tokenDelimiter = "."
)

// DefaultTokenTTL is used for login issued tokens when nothing is configured
const DefaultTokenTTL = "7d"

var (
	segmentEncoding = base64.RawURLEncoding
	encodedHeader   = segmentEncoding.EncodeToString([]byte(`{"alg":"` + tokenAlgorithm + `","typ":"` + tokenType + `"}`))
)

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// TokenCodec encodes and verifies signed tokens with a single shared secret.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption customizes a TokenCodec
type CodecOption func(*TokenCodec)

// WithCodecClock injects a custom clock (useful for tests).
func WithCodecClock(clock func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewTokenCodec creates a codec. An empty secret is accepted here and
// rejected on every Encode and Decode as a server misconfiguration.
func NewTokenCodec(secret []byte, ttl time.Duration, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// NewTokenCodecFromConfig builds a codec from the signing key and TTL in cfg
func NewTokenCodecFromConfig(cfg Config, opts ...CodecOption) (*TokenCodec, error) {
	raw := cfg.GetTokenTTL()
	if strings.TrimSpace(raw) == "" {
		raw = DefaultTokenTTL
	}
	ttl, err := ParseTTL(raw)
	if err != nil {
		return nil, err
	}
	return NewTokenCodec([]byte(cfg.GetSigningKey()), ttl, opts...), nil
}

// Configured reports whether a signing secret is present
func (c *TokenCodec) Configured() bool {
	return c != nil && len(c.secret) > 0
}

// TTL is the lifetime given to encoded tokens
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Encode signs claims with the codec secret and TTL
func (c *TokenCodec) Encode(claims Claims) (string, error) {
	return encodeAt(claims, c.secret, c.ttl, c.now())
}

// Decode verifies token and returns its claims
func (c *TokenCodec) Decode(token string) (Claims, error) {
	return decodeAt(token, c.secret, c.now())
}

// Encode stamps iat and exp on claims and returns the signed token
func Encode(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	return encodeAt(claims, secret, ttl, time.Now())
}

// Decode verifies the signature and expiry of token and returns its claims.
// Malformed tokens and bad signatures fail with ErrTokenInvalid, an exp in
// the past with ErrTokenExpired.
func Decode(token string, secret []byte) (Claims, error) {
	return decodeAt(token, secret, time.Now())
}

func encodeAt(claims Claims, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrServerMisconfigured
	}

	if ttl <= 0 {
		return "", with(ErrInvalidConfig, map[string]any{"ttl": ttl.String()})
	}

	if claims.Subject() == "" {
		return "", with(ErrValidation, map[string]any{
			"fields": map[string]any{ClaimSubject: "subject id is required"},
		})
	}

	stamped := claims.
		With(ClaimIssuedAt, now.Unix()).
		With(ClaimExpiresAt, now.Add(ttl).Unix())

	payload, err := json.Marshal(stamped)
	if err != nil {
		return "", with(ErrValidation, map[string]any{
			"fields": map[string]any{"claims": err.Error()},
		})
	}

	signingString := encodedHeader + tokenDelimiter + segmentEncoding.EncodeToString(payload)

	signature, err := sign(signingString, secret)
	if err != nil {
		return "", err
	}

	return signingString + tokenDelimiter + signature, nil
}

func decodeAt(token string, secret []byte, now time.Time) (Claims, error) {
	if len(secret) == 0 {
		return Claims{}, ErrServerMisconfigured
	}

	parts := strings.Split(token, tokenDelimiter)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Claims{}, ErrTokenInvalid
	}

	expected, err := sign(parts[0]+tokenDelimiter+parts[1], secret)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}

	if !signaturesEqual(expected, parts[2]) {
		return Claims{}, ErrTokenInvalid
	}

	if !validHeader(parts[0]) {
		return Claims{}, ErrTokenInvalid
	}

	claims, ok := decodeClaims(parts[1])
	if !ok {
		return Claims{}, ErrTokenInvalid
	}

	if _, present := claims.Get(ClaimExpiresAt); present {
		exp, ok := claims.ExpiresAt()
		if !ok {
			return Claims{}, ErrTokenInvalid
		}
		if exp.Unix() < now.Unix() {
			return Claims{}, ErrTokenExpired
		}
	}

	return claims, nil
}

func sign(signingString string, secret []byte) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(signingString, secret)
	if err != nil {
		return "", with(ErrServerMisconfigured, map[string]any{"cause": err.Error()})
	}
	return segmentEncoding.EncodeToString(sig), nil
}

// signaturesEqual compares encoded signatures without exiting early on content
func signaturesEqual(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

func validHeader(segment string) bool {
	raw, err := segmentEncoding.DecodeString(segment)
	if err != nil {
		return false
	}
	var h tokenHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return false
	}
	return h.Alg == tokenAlgorithm && h.Typ == tokenType
}

func decodeClaims(segment string) (Claims, bool) {
	raw, err := segmentEncoding.DecodeString(segment)
	if err != nil {
		return Claims{}, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil || values == nil {
		return Claims{}, false
	}

	if _, err := dec.Token(); err != io.EOF {
		return Claims{}, false
	}

	return Claims{values: values}, true
}

// ParseTTL accepts a raw second count ("3600") or a number with a single
// s, m, h or d unit ("7d", "12H"). Zero and negative values are rejected.
func ParseTTL(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ttlError(raw)
	}

	unit := time.Second
	digits := s

	if last := s[len(s)-1]; last < '0' || last > '9' {
		switch last {
		case 's', 'S':
			unit = time.Second
		case 'm', 'M':
			unit = time.Minute
		case 'h', 'H':
			unit = time.Hour
		case 'd', 'D':
			unit = 24 * time.Hour
		default:
			return 0, ttlError(raw)
		}
		digits = s[:len(s)-1]
	}

	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, ttlError(raw)
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 || n > math.MaxInt64/int64(unit) {
		return 0, ttlError(raw)
	}

	return time.Duration(n) * unit, nil
}

func ttlError(raw string) error {
	return with(ErrInvalidConfig, map[string]any{"ttl": raw})
}
