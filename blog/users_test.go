package blog

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/adeilh/scribe/auth"
	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/internal/testutil"
	"github.com/adeilh/scribe/postcache"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()

	s, err := e.users.Register(ctx, Registration{Name: "Ada", Email: " Ada@Example.com ", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if s.User.Role != domain.RoleUser || s.User.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", s.User)
	}
	if s.User.PasswordHash == "" || s.User.PasswordHash == "correct-horse" {
		t.Fatalf("password not hashed")
	}
	tok, err := e.tokens.ParseToken(ctx, s.Token.Raw())
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if tok.Claims().Subject != s.User.ID || tok.Claims().Role != "user" {
		t.Fatalf("unexpected claims: %+v", tok.Claims())
	}

	if _, err := e.users.Register(ctx, Registration{Name: "Other", Email: "ada@example.com", Password: "another-pass"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate Register() error = %v", err)
	}

	if _, err := e.users.Login(ctx, "ADA@example.com", "correct-horse"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	for _, tc := range []struct{ email, password string }{
		{"ada@example.com", "wrong-password"},
		{"nobody@example.com", "correct-horse"},
		{"ada@example.com", ""},
	} {
		if _, err := e.users.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q, %q) error = %v", tc.email, tc.password, err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t, false)
	cases := []Registration{
		{Name: "", Email: "a@example.com", Password: "long-enough"},
		{Name: "A", Email: "not-an-email", Password: "long-enough"},
		{Name: "A", Email: "a@example.com", Password: "short"},
	}
	for _, r := range cases {
		if _, err := e.users.Register(context.Background(), r); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("Register(%+v) error = %v", r, err)
		}
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	s, err := e.users.Register(ctx, Registration{Name: "Ada", Email: "ada@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := e.users.Logout(ctx, s.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := e.tokens.ParseToken(ctx, s.Token.Raw()); !errors.Is(err, auth.ErrJWTRevoked) {
		t.Fatalf("ParseToken() after logout error = %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	r := Registration{Name: "Root", Email: "root@example.com", Password: "super-secret"}

	first, err := e.users.EnsureAdmin(ctx, r)
	if err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	if !first.IsAdmin() {
		t.Fatalf("bootstrap user role = %q", first.Role)
	}
	second, err := e.users.EnsureAdmin(ctx, r)
	if err != nil || second.ID != first.ID {
		t.Fatalf("second EnsureAdmin() = %q, %v; want %q", second.ID, err, first.ID)
	}
	users, _ := e.users.List(ctx)
	if len(users) != 1 {
		t.Fatalf("List() returned %d users", len(users))
	}
}

func TestDeleteUserCascadesAndInvalidates(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	ada := e.register(t, "Ada", "ada@example.com")
	bob := e.register(t, "Bob", "bob@example.com")
	p1 := e.createPost(t, ada, "one")
	p2 := e.createPost(t, ada, "two")
	kept := e.createPost(t, bob, "bob's")

	if err := e.users.Delete(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete() of missing user error = %v", err)
	}
	if err := e.users.Delete(ctx, ada.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := e.repo.FindPostByID(ctx, p1.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("post survived its author: %v", err)
	}
	if _, err := e.repo.FindPostByID(ctx, kept.ID); err != nil {
		t.Fatalf("unrelated post removed: %v", err)
	}
	last := len(e.inv.events) - 1
	if e.inv.events[last] != "removed" {
		t.Fatalf("events = %v", e.inv.Events())
	}
	want := []string{p1.ID, p2.ID}
	if want[0] > want[1] {
		want[0], want[1] = want[1], want[0]
	}
	if !reflect.DeepEqual(e.inv.ids[last], want) {
		t.Fatalf("removed ids = %v, want %v", e.inv.ids[last], want)
	}
}

func TestDeleteUserPurgesCachedPosts(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	ada := e.register(t, "Ada", "ada@example.com")
	p := e.createPost(t, ada, "doomed")

	if _, _, err := e.reader.GetPost(ctx, p.ID); err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if _, _, err := e.reader.ListPosts(ctx, domain.ListQuery{Page: 1, Limit: 10}); err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if err := e.users.Delete(ctx, ada.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, _, err := e.reader.GetPost(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cached post served after author deletion: %v", err)
	}
	page, origin, err := e.reader.ListPosts(ctx, domain.ListQuery{Page: 1, Limit: 10})
	if err != nil || origin != postcache.OriginDatabase || page.Total != 0 {
		t.Fatalf("ListPosts() = total %d, %s, %v", page.Total, origin, err)
	}
}

// racingUsers creates a post for the user right before the cascade runs,
// as a concurrent request would.
type racingUsers struct {
	*testutil.Repository
	late domain.Post
}

func (r *racingUsers) DeleteUser(ctx context.Context, id string) ([]string, error) {
	r.late.AuthorID = id
	if err := r.Repository.CreatePost(ctx, r.late); err != nil {
		return nil, err
	}
	return r.Repository.DeleteUser(ctx, id)
}

func TestDeleteUserPurgesPostsCreatedDuringCascade(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	ada := e.register(t, "Ada", "ada@example.com")
	early := e.createPost(t, ada, "early")

	late := domain.Post{ID: "zz-late", Title: "late", Content: "c", Category: "tech", CreatedAt: e.clock(), UpdatedAt: e.clock()}
	users, err := NewUserService(UserServiceConfig{
		Users:       &racingUsers{Repository: e.repo, late: late},
		Hasher:      auth.NewBcryptHasher(),
		Tokens:      e.tokens,
		Invalidator: e.inv,
		Logger:      discard,
	})
	if err != nil {
		t.Fatalf("NewUserService() error = %v", err)
	}
	if err := users.Delete(ctx, ada.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	last := len(e.inv.events) - 1
	want := []string{early.ID, late.ID}
	if e.inv.events[last] != "removed" || !reflect.DeepEqual(e.inv.ids[last], want) {
		t.Fatalf("last event %s %v, want removed %v", e.inv.events[last], e.inv.ids[last], want)
	}
}
