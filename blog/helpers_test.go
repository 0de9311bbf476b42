package blog

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/adeilh/scribe/auth"
	"github.com/adeilh/scribe/cache/memory"
	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/internal/testutil"
	"github.com/adeilh/scribe/postcache"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingInvalidator struct {
	mu     sync.Mutex
	events []string
	ids    [][]string
}

func (r *recordingInvalidator) record(event string, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.ids = append(r.ids, ids)
}

func (r *recordingInvalidator) PostCreated(_ context.Context, id string) { r.record("created", id) }
func (r *recordingInvalidator) PostUpdated(_ context.Context, id string) { r.record("updated", id) }
func (r *recordingInvalidator) PostDeleted(_ context.Context, id string) { r.record("deleted", id) }
func (r *recordingInvalidator) PostsRemoved(_ context.Context, ids ...string) {
	r.record("removed", ids...)
}

func (r *recordingInvalidator) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type env struct {
	repo     *testutil.Repository
	store    *memory.Store
	reader   *postcache.Reader
	inv      *recordingInvalidator
	posts    *PostService
	comments *CommentService
	users    *UserService
	tokens   *auth.JWTProvider
	now      time.Time
}

func (e *env) clock() time.Time {
	e.now = e.now.Add(time.Second)
	return e.now
}

// newEnv wires services over the in-memory repository. When live is true
// the real cache invalidator is used instead of the recorder.
func newEnv(t *testing.T, live bool) *env {
	t.Helper()
	store, err := memory.NewStore(memory.Options{})
	if err != nil {
		t.Fatalf("memory.NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	e := &env{
		repo:  testutil.NewRepository(),
		store: store,
		inv:   &recordingInvalidator{},
		now:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	opts := postcache.Options{Logger: discard}
	e.reader = postcache.NewReader(store, e.repo, opts)

	var inv Invalidator = e.inv
	if live {
		inv = postcache.NewInvalidator(store, opts, postcache.InvalidationPolicy{Attempts: 1})
	}

	e.tokens, err = auth.NewJWTProvider(auth.JWTProviderConfig{
		Secret: []byte("an-unguessable-secret-of-32-bytes"),
		Issuer: "scribe-test",
		Store:  store,
		Logger: discard,
	})
	if err != nil {
		t.Fatalf("NewJWTProvider() error = %v", err)
	}

	e.posts, err = NewPostService(PostServiceConfig{Repository: e.repo, Invalidator: inv, Logger: discard, Now: e.clock})
	if err != nil {
		t.Fatalf("NewPostService() error = %v", err)
	}
	e.comments, err = NewCommentService(CommentServiceConfig{Posts: e.repo, Comments: e.repo, Now: e.clock})
	if err != nil {
		t.Fatalf("NewCommentService() error = %v", err)
	}
	e.users, err = NewUserService(UserServiceConfig{
		Users:       e.repo,
		Hasher:      auth.NewBcryptHasher(auth.WithBcryptCost(bcrypt.MinCost)),
		Tokens:      e.tokens,
		Invalidator: inv,
		Logger:      discard,
		Now:         e.clock,
	})
	if err != nil {
		t.Fatalf("NewUserService() error = %v", err)
	}
	return e
}

func (e *env) register(t *testing.T, name, email string) Actor {
	t.Helper()
	s, err := e.users.Register(context.Background(), Registration{Name: name, Email: email, Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", email, err)
	}
	return Actor{ID: s.User.ID, Role: s.User.Role}
}

func (e *env) createPost(t *testing.T, actor Actor, title string) domain.Post {
	t.Helper()
	p, err := e.posts.Create(context.Background(), actor, PostInput{Title: title, Content: "body of " + title, Category: "tech"})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", title, err)
	}
	return p
}
