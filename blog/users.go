package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adeilh/scribe/auth"
	"github.com/adeilh/scribe/domain"
)

// Registration carries the fields of a sign-up request.
type Registration struct {
	Name     string
	Email    string
	Password string
}

// Session is the result of a successful register or login.
type Session struct {
	Token auth.JWTToken
	User  domain.User
}

// UserServiceConfig wires the dependencies required for UserService.
type UserServiceConfig struct {
	Users       domain.UserRepository
	Hasher      auth.PasswordHasher
	Tokens      auth.JWTTokenProvider
	Invalidator Invalidator
	Logger      *slog.Logger
	Now         func() time.Time
}

// UserService handles accounts and their sessions.
type UserService struct {
	users  domain.UserRepository
	hasher auth.PasswordHasher
	tokens auth.JWTTokenProvider
	inv    Invalidator
	log    *slog.Logger
	now    clock
}

func NewUserService(cfg UserServiceConfig) (*UserService, error) {
	switch {
	case cfg.Users == nil:
		return nil, errors.New("blog: user service requires a user repository")
	case cfg.Hasher == nil:
		return nil, errors.New("blog: user service requires a password hasher")
	case cfg.Tokens == nil:
		return nil, errors.New("blog: user service requires a token provider")
	case cfg.Invalidator == nil:
		return nil, errors.New("blog: user service requires an invalidator")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &UserService{
		users:  cfg.Users,
		hasher: cfg.Hasher,
		tokens: cfg.Tokens,
		inv:    cfg.Invalidator,
		log:    log,
		now:    cfg.Now,
	}, nil
}

// Register creates a regular user and signs them in. Returns
// domain.ErrConflict when the email is taken.
func (s *UserService) Register(ctx context.Context, r Registration) (Session, error) {
	user, err := s.create(ctx, r, domain.RoleUser)
	if err != nil {
		return Session{}, err
	}
	return s.session(ctx, user)
}

// Login verifies credentials and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || auth.ValidatePassword([]byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.hasher.Compare(ctx, []byte(password), user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	return s.session(ctx, user)
}

// Logout revokes the caller's token for the rest of its lifetime.
func (s *UserService) Logout(ctx context.Context, token auth.JWTToken) error {
	return s.tokens.Revoke(ctx, token)
}

// EnsureAdmin creates an admin account unless the email already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, r Registration) (domain.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, normalizeEmail(r.Email))
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			s.log.WarnContext(ctx, "bootstrap admin email belongs to a regular user", slog.String("user_id", existing.ID))
		}
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, err
	}
	user, err := s.create(ctx, r, domain.RoleAdmin)
	if err != nil {
		return domain.User{}, err
	}
	s.log.InfoContext(ctx, "bootstrap admin created", slog.String("user_id", user.ID))
	return user, nil
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.ListUsers(ctx)
}

// Delete removes a user together with their posts and comments and purges
// the removed posts from the cache.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.users.GetUserByID(ctx, id); err != nil {
		return err
	}
	ids, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	s.inv.PostsRemoved(ctx, ids...)
	s.log.InfoContext(ctx, "user deleted", slog.String("user_id", id), slog.Int("posts", len(ids)))
	return nil
}

func (s *UserService) create(ctx context.Context, r Registration, role domain.Role) (domain.User, error) {
	name, email := trim(r.Name), normalizeEmail(r.Email)
	if name == "" || email == "" || r.Password == "" {
		return domain.User{}, invalid("name, email and password are required")
	}
	if !auth.ValidateEmail(email) {
		return domain.User{}, invalid("email is not valid")
	}
	if err := auth.ValidatePassword([]byte(r.Password)); err != nil {
		return domain.User{}, invalid("password must be between %d and %d characters", auth.MinPasswordLength, auth.MaxPasswordLength)
	}
	hash, err := s.hasher.Hash(ctx, []byte(r.Password))
	if err != nil {
		return domain.User{}, fmt.Errorf("blog: hash password: %w", err)
	}
	now := s.now.now()
	user := domain.User{
		ID:           newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) session(ctx context.Context, user domain.User) (Session, error) {
	token, err := s.tokens.Issue(ctx, auth.JWTClaims{
		Subject: user.ID,
		Name:    user.Name,
		Role:    string(user.Role),
	})
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
