// Package token mints and verifies the signed access and refresh tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes the two token classes. Each kind is signed with its own
// secret.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// MinTTL is the shortest lifetime Mint accepts. JWT times have whole-second
// resolution.
const MinTTL = time.Second

// Claims is the signed claim set. Access tokens carry role and handle;
// refresh tokens carry only the identity and a unique ID that the store
// keeps as the session anchor.
type Claims struct {
	IdentityID string `json:"user_id"`
	Role       string `json:"role,omitempty"`
	Handle     string `json:"handle,omitempty"`
	Type       Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for minting and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// Codec signs and verifies tokens with HS256.
type Codec struct {
	secrets map[Kind][]byte
	issuer  string
	now     func() time.Time
}

// NewCodec creates a Codec. The two secrets must be non-empty and different.
func NewCodec(accessSecret, refreshSecret, issuer string, opts ...Option) (*Codec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	c := &Codec{
		secrets: map[Kind][]byte{
			KindAccess:  []byte(accessSecret),
			KindRefresh: []byte(refreshSecret),
		},
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint signs claims as a token of the given kind that expires after ttl.
// Issuer, subject, issued-at, expiry and type are set by the codec; an empty
// ID gets a fresh UUID. The completed claims are returned with the token.
func (c *Codec) Mint(kind Kind, claims Claims, ttl time.Duration) (string, *Claims, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return "", nil, fmt.Errorf("unknown token kind %q", kind)
	}
	if ttl < MinTTL {
		return "", nil, fmt.Errorf("token ttl must be at least %s, got %s", MinTTL, ttl)
	}

	now := c.now().UTC()
	claims.Type = kind
	claims.Issuer = c.issuer
	claims.Subject = claims.IdentityID
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(ceilSecond(now.Add(ttl)))
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, &claims, nil
}

// Verify checks the signature first and only then the claims. The error
// wraps exactly one of ErrExpired, ErrInvalidSignature or ErrMalformed.
func (c *Codec) Verify(tokenString string, kind Kind) (*Claims, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrMalformed, kind)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Type != kind {
		return nil, fmt.Errorf("%w: want %s token, got %q", ErrMalformed, kind, claims.Type)
	}
	if claims.IdentityID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing identity or token id", ErrMalformed)
	}
	return &claims, nil
}

// ceilSecond rounds t up to a whole second, so the encoded expiry is never
// earlier than requested.
func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
