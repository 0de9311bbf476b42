// Package blog implements the write workflows for posts, comments and
// accounts on top of the repositories, and keeps the post cache
// consistent after every successful write.
package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adeilh/scribe/domain"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a
// wrong password alike.
var ErrInvalidCredentials = errors.New("blog: invalid email or password")

// Actor is the authenticated caller of a write.
type Actor struct {
	ID   string
	Role domain.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

func (a Actor) owns(authorID string) bool {
	return a.ID != "" && a.ID == authorID
}

// Invalidator purges cached post data. Calls never fail the caller.
type Invalidator interface {
	PostCreated(ctx context.Context, id string)
	PostUpdated(ctx context.Context, id string)
	PostDeleted(ctx context.Context, id string)
	PostsRemoved(ctx context.Context, ids ...string)
}

// InputError reports a rejected request field. It matches
// domain.ErrInvalidInput.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return "blog: " + e.Message }

func (e *InputError) Unwrap() error { return domain.ErrInvalidInput }

func invalid(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func newID() string { return uuid.NewString() }

func trim(s string) string { return strings.TrimSpace(s) }
