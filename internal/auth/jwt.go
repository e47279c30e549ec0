// Package auth issues session tokens and adapts external identity providers
// into the single Identity shape the account service consumes.
//
// The core never authenticates anyone itself. GitHub and Google sign-in are
// OAuth 2.0 Authorization Code flows via golang.org/x/oauth2; the local
// email/password login hashes with bcrypt. Each produces an Identity whose
// UID is stable for that person and namespaced by provider.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The user registers, logs in, or finishes an OAuth callback.
//  2. The account service resolves that to a uid and its profile.
//  3. TokenService issues a signed JWT (sub = uid, exp = now + TTL).
//  4. The token is set as the linkbio_session HttpOnly cookie.
//  5. RequireAuth/OptionalAuth validate it on later requests and put the
//     uid in the request context.
//
// WHY JWT?
// The token carries the uid and expiry and is signed with HMAC-SHA256, so a
// request is authenticated without a session table lookup.
//
// UID NAMESPACES:
//
//	<xid>           email/password accounts
//	github:<id>     numeric GitHub user id, never the login (logins change)
//	google:<sub>    the OpenID Connect subject
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "linkbio"
	DefaultTokenTTL = 24 * time.Hour
)

// ErrTokenExpired is returned by Validate for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and validates HS256 session tokens. The subject claim
// carries the uid.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. A ttl of zero uses DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens from Generate.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Generate issues a token for uid with the configured lifetime.
func (s *TokenService) Generate(uid string) (string, error) {
	return s.GenerateWithDuration(uid, s.ttl)
}

// GenerateWithDuration issues a token for uid that expires after d.
// A negative d yields an already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(uid string, d time.Duration) (string, error) {
	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    tokenIssuer,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer and expiry and returns the uid.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
