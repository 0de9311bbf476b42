package postcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/scribe/cache/memory"
	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	repo  *testutil.Repository
	mem   *memory.Store
	store *testutil.FlakyStore
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	mem, err := memory.NewStore(memory.Options{MaximumSize: 1000, Now: clk.Now})
	if err != nil {
		t.Fatalf("memory.NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })

	repo := testutil.NewRepository()
	if err := repo.CreateUser(context.Background(), domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &fixture{repo: repo, mem: mem, store: testutil.NewFlakyStore(mem), clock: clk}
}

func (f *fixture) seedPosts(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, f.addPost(t, fmt.Sprintf("Post %d", i+1)))
	}
	return ids
}

func (f *fixture) addPost(t *testing.T, title string) string {
	t.Helper()
	f.clock.Advance(time.Second)
	id := fmt.Sprintf("p-%d", f.clock.Now().Unix())
	err := f.repo.CreatePost(context.Background(), domain.Post{
		ID:        id,
		Title:     title,
		Content:   "content of " + title,
		Category:  "tech",
		AuthorID:  "u1",
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return id
}

func (f *fixture) options() Options {
	return Options{Logger: discard}
}
