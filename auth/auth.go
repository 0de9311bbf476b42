// Package auth issues and verifies signed session tokens, guards HTTP
// handlers with them and hashes user passwords.
package auth

import (
	"context"
	"time"
)

// JWTClaims models the payload embedded inside a signed JWT.
type JWTClaims struct {
	ID        string
	Subject   string
	Issuer    string
	Name      string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTToken exposes immutable information about a minted JWT.
type JWTToken interface {
	Raw() string
	Claims() JWTClaims
	IssuedAt() time.Time
	ExpiresAt() time.Time
}

// TokenParser validates a raw token.
type TokenParser interface {
	ParseToken(ctx context.Context, raw string) (JWTToken, error)
}

// JWTTokenProvider issues, validates, and revokes JWTs.
type JWTTokenProvider interface {
	TokenParser
	Issue(ctx context.Context, claims JWTClaims) (JWTToken, error)
	Revoke(ctx context.Context, token JWTToken) error
}

// PasswordHasher manages password hashing and verification.
type PasswordHasher interface {
	Hash(ctx context.Context, plain []byte) (string, error)
	Compare(ctx context.Context, plain []byte, hash string) error
}
