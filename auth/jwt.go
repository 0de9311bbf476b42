package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/adeilh/scribe/cache"
)

var (
	ErrJWTInvalid           = errors.New("auth: invalid jwt")
	ErrJWTExpired           = errors.New("auth: jwt expired")
	ErrJWTRevoked           = errors.New("auth: jwt revoked")
	ErrJWTInvalidClaims     = errors.New("auth: invalid jwt claims")
	ErrJWTMissingSigningKey = errors.New("auth: missing signing key")
	ErrJWTWeakSigningKey    = errors.New("auth: signing key too short")
)

// MinSecretLength is the minimum secret length for HMAC-SHA256.
const MinSecretLength = 32

// RevokedKeyPrefix prefixes the cache keys of revoked token ids.
const RevokedKeyPrefix = "jwt:revoked:"

const (
	defaultTokenTTL      = 7 * 24 * time.Hour
	defaultLeeway        = 30 * time.Second
	defaultLookupTimeout = 250 * time.Millisecond
)

type jwtToken struct {
	raw    string
	claims JWTClaims
}

func (t jwtToken) Raw() string { return t.raw }

func (t jwtToken) Claims() JWTClaims { return t.claims }

func (t jwtToken) IssuedAt() time.Time { return t.claims.IssuedAt }

func (t jwtToken) ExpiresAt() time.Time { return t.claims.ExpiresAt }

type tokenClaims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTProviderConfig describes how to bootstrap a JWTProvider.
type JWTProviderConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Leeway time.Duration
	// Store holds the revocation list. Without one, Revoke is a no-op.
	Store cache.Store
	// LookupTimeout bounds the revocation check made on every parse.
	LookupTimeout time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// JWTProvider implements JWTTokenProvider with HS256 signatures. Revoked
// token ids are kept in the cache store until the token would have expired.
type JWTProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	store  cache.Store
	lookup time.Duration
	log    *slog.Logger
	now    func() time.Time
}

var _ JWTTokenProvider = (*JWTProvider)(nil)

// NewJWTProvider validates the secret and builds a provider.
func NewJWTProvider(cfg JWTProviderConfig) (*JWTProvider, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrJWTMissingSigningKey
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrJWTWeakSigningKey, MinSecretLength)
	}
	p := &JWTProvider{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		leeway: cfg.Leeway,
		store:  cfg.Store,
		lookup: cfg.LookupTimeout,
		log:    cfg.Logger,
		now:    cfg.Now,
	}
	if p.ttl <= 0 {
		p.ttl = defaultTokenTTL
	}
	if p.leeway <= 0 {
		p.leeway = defaultLeeway
	}
	if p.lookup <= 0 {
		p.lookup = defaultLookupTimeout
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Issue signs claims. ID, IssuedAt and ExpiresAt are filled in when empty.
func (p *JWTProvider) Issue(ctx context.Context, claims JWTClaims) (JWTToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrJWTInvalidClaims
	}
	now := p.now().UTC().Truncate(time.Second)
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = now
	}
	if claims.ExpiresAt.IsZero() {
		claims.ExpiresAt = claims.IssuedAt.Add(p.ttl)
	}
	if claims.Issuer == "" {
		claims.Issuer = p.issuer
	}

	tc := tokenClaims{
		Name: claims.Name,
		Role: claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.ID,
			Subject:   claims.Subject,
			Issuer:    claims.Issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign jwt: %w", err)
	}
	return jwtToken{raw: raw, claims: claims}, nil
}

// ParseToken verifies signature, expiry, issuer and revocation.
func (p *JWTProvider) ParseToken(ctx context.Context, raw string) (JWTToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(p.leeway),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	var tc tokenClaims
	tok, err := jwt.ParseWithClaims(raw, &tc, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrJWTExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrJWTInvalid, err)
	case !tok.Valid:
		return nil, ErrJWTInvalid
	}
	if tc.Subject == "" || tc.ID == "" {
		return nil, ErrJWTInvalidClaims
	}

	claims := JWTClaims{
		ID:      tc.ID,
		Subject: tc.Subject,
		Issuer:  tc.Issuer,
		Name:    tc.Name,
		Role:    tc.Role,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}

	if p.revoked(ctx, claims.ID) {
		return nil, ErrJWTRevoked
	}
	return jwtToken{raw: raw, claims: claims}, nil
}

// Revoke deny-lists the token until its expiry.
func (p *JWTProvider) Revoke(ctx context.Context, token JWTToken) error {
	if p.store == nil || token == nil {
		return nil
	}
	claims := token.Claims()
	ttl := claims.ExpiresAt.Sub(p.now()) + p.leeway
	if ttl <= 0 {
		return nil
	}
	if err := p.store.Set(ctx, p.revokedKey(claims.ID), []byte("1"), ttl); err != nil {
		return fmt.Errorf("auth: revoke jwt: %w", err)
	}
	return nil
}

// revoked fails open: an unreachable or slow store must not lock every
// user out.
func (p *JWTProvider) revoked(ctx context.Context, id string) bool {
	if p.store == nil {
		return false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, p.lookup)
	defer cancel()
	_, err := p.store.Get(lookupCtx, p.revokedKey(id))
	switch {
	case err == nil:
		return true
	case errors.Is(err, cache.ErrNotFound):
		return false
	default:
		p.log.WarnContext(ctx, "revocation check failed, accepting token", slog.String("jti", id), slog.Any("error", err))
		return false
	}
}

func (p *JWTProvider) revokedKey(id string) string {
	return RevokedKeyPrefix + id
}
