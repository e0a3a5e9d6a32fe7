// Package token signs and verifies the bearer tokens handed to clients.
//
// A token is a JWT whose claims carry at least "sub" and "exp". Every decode
// failure (bad signature, unexpected algorithm, malformed input, expiry) is
// reported to callers as ErrInvalidToken; the concrete reason only goes to the
// debug log.
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimSubject   = "sub"
	ClaimExpiresAt = "exp"
	ClaimIssuedAt  = "iat"
	ClaimID        = "jti"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("signing secret is empty")
)

// Claims is the payload of a token.
type Claims map[string]any

type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
	log    *slog.Logger
}

type Option func(*Codec)

// WithClock replaces time.Now for both signing and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Codec) { c.log = log }
}

func NewCodec(secret []byte, algorithm string, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	method, err := signingMethod(algorithm)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		method: method,
		now:    time.Now,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode signs claims with exp = now + ttl. exp, iat and jti are always set
// by the codec and override caller supplied values.
func (c *Codec) Encode(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := c.now()
	mc := jwt.MapClaims{}
	maps.Copy(mc, claims)
	mc[ClaimExpiresAt] = now.Add(ttl).Unix()
	mc[ClaimIssuedAt] = now.Unix()
	mc[ClaimID] = uuid.NewString()

	signed, err := jwt.NewWithClaims(c.method, mc).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies signature, algorithm and expiry and returns the claims.
func (c *Codec) Decode(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	)

	mc := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(tokenStr, mc, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		c.log.Debug("token rejected", "reason", rejectReason(err))
		return nil, ErrInvalidToken
	}
	return Claims(mc), nil
}

// Subject returns the "sub" claim.
func Subject(claims Claims) (string, error) {
	sub, err := jwt.MapClaims(claims).GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// ExpiresAt returns the "exp" claim as a time.
func ExpiresAt(claims Claims) (time.Time, error) {
	exp, err := jwt.MapClaims(claims).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrInvalidToken
	}
	return exp.Time, nil
}

func signingMethod(algorithm string) (jwt.SigningMethod, error) {
	switch algorithm {
	case "HS256", "":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
}

func rejectReason(err error) string {
	switch {
	case err == nil:
		return "invalid"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "algorithm"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	default:
		return err.Error()
	}
}
