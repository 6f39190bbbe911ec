// Package auth issues and verifies the bearer tokens that identify a user
// to the HTTP API. The subject of a token is the user's email.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when a request carries no bearer token.
	ErrNoToken = errors.New("no bearer token")
	// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSecret is returned when no signing secret is configured.
	ErrNoSecret = errors.New("jwt secret not configured")
)

// Claims are the registered claims plus the user's email.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. ttl <= 0 means tokens do not expire.
func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Mint returns a signed token for email.
func (i *Issuer) Mint(email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	now := i.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  email,
			Issuer:   i.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns the email it was minted for.
func (i *Issuer) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	email := claims.Email
	if email == "" {
		email = claims.Subject
	}
	if email = normalizeEmail(email); email == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return email, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(token), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User is the authenticated caller.
type User struct {
	ID    string
	Email string
}

type userKey struct{}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext returns the authenticated user, if any.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}
