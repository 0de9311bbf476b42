package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = errors.New("auth: password too short")
	ErrPasswordTooLong  = errors.New("auth: password too long")
	ErrPasswordMismatch = errors.New("auth: password does not match")
	ErrPasswordInvalid  = errors.New("auth: invalid password hash")
)

const (
	DefaultBcryptCost = 12
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit.
	MaxPasswordLength = 72
)

// ValidatePassword checks length bounds.
func ValidatePassword(plain []byte) error {
	switch {
	case len(plain) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(plain) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// BcryptHasherOption configures BcryptHasher.
type BcryptHasherOption func(*BcryptHasher)

// WithBcryptCost sets the bcrypt cost factor.
func WithBcryptCost(cost int) BcryptHasherOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// NewBcryptHasher creates a new bcrypt-based password hasher.
func NewBcryptHasher(opts ...BcryptHasherOption) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultBcryptCost}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Hash validates and hashes plain.
func (h *BcryptHasher) Hash(ctx context.Context, plain []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidatePassword(plain); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword(plain, h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: bcrypt hash failed: %w", err)
	}
	return string(hashed), nil
}

// Compare validates a password against a stored hash.
func (h *BcryptHasher) Compare(ctx context.Context, plain []byte, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if hash == "" {
		return ErrPasswordInvalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), plain); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: bcrypt compare failed: %w", err)
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address format.
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
