package sqlstore

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adeilh/scribe/domain"
)

// runRepositorySuite exercises the repositories against a migrated db.
func runRepositorySuite(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	alice := domain.User{ID: uuid.NewString(), Name: "Alice", Email: "Alice@Example.com", PasswordHash: "h", Role: domain.RoleUser, CreatedAt: base, UpdatedAt: base}
	bob := domain.User{ID: uuid.NewString(), Name: "Bob", Email: "bob@example.com", PasswordHash: "h", Role: domain.RoleAdmin, CreatedAt: base.Add(time.Minute), UpdatedAt: base}

	t.Run("users", func(t *testing.T) {
		for _, u := range []domain.User{alice, bob} {
			if err := users.CreateUser(ctx, u); err != nil {
				t.Fatalf("CreateUser(%s) error = %v", u.Name, err)
			}
		}
		dup := alice
		dup.ID = uuid.NewString()
		dup.Email = "alice@example.COM"
		if err := users.CreateUser(ctx, dup); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("duplicate email error = %v, want ErrConflict", err)
		}

		got, err := users.GetUserByEmail(ctx, "ALICE@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail() error = %v", err)
		}
		if got.ID != alice.ID || got.Role != domain.RoleUser || !got.CreatedAt.Equal(base) {
			t.Fatalf("GetUserByEmail() = %+v", got)
		}
		if _, err := users.GetUserByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetUserByID(missing) error = %v", err)
		}
		list, err := users.ListUsers(ctx)
		if err != nil || len(list) != 2 || list[0].ID != bob.ID {
			t.Fatalf("ListUsers() = %+v, %v", list, err)
		}
	})

	var ids []string
	t.Run("posts", func(t *testing.T) {
		seed := []struct {
			title, content, category string
		}{
			{"Learning Go", "channels and goroutines", "tech"},
			{"Baking bread", "flour, water, salt", "food"},
			{"Go caching", "cache-aside with 100% hit_rate", "tech"},
		}
		for i, s := range seed {
			p := domain.Post{
				ID:        uuid.NewString(),
				Title:     s.title,
				Content:   s.content,
				Category:  s.category,
				AuthorID:  alice.ID,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
				UpdatedAt: base.Add(time.Duration(i) * time.Hour),
			}
			if err := posts.CreatePost(ctx, p); err != nil {
				t.Fatalf("CreatePost() error = %v", err)
			}
			ids = append(ids, p.ID)
		}

		orphan := domain.Post{ID: uuid.NewString(), Title: "x", Content: "x", Category: "x", AuthorID: uuid.NewString(), CreatedAt: base, UpdatedAt: base}
		if err := posts.CreatePost(ctx, orphan); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("CreatePost(unknown author) error = %v, want ErrNotFound", err)
		}

		n, err := posts.CountPosts(ctx, domain.PostFilter{})
		if err != nil || n != 3 {
			t.Fatalf("CountPosts() = %d, %v", n, err)
		}
		page, err := posts.FindPosts(ctx, domain.PostFilter{}, 0, 2)
		if err != nil {
			t.Fatalf("FindPosts() error = %v", err)
		}
		if len(page) != 2 || page[0].Title != "Go caching" || page[1].Title != "Baking bread" {
			t.Fatalf("FindPosts() not newest first: %+v", page)
		}
		if page[0].Author == nil || page[0].Author.Name != "Alice" {
			t.Fatalf("author not joined: %+v", page[0].Author)
		}

		tech, _ := posts.CountPosts(ctx, domain.PostFilter{Category: "tech"})
		if tech != 2 {
			t.Fatalf("CountPosts(tech) = %d, want 2", tech)
		}
		search, _ := posts.FindPosts(ctx, domain.PostFilter{Search: "GOROUTINES"}, 0, 10)
		if len(search) != 1 || search[0].ID != ids[0] {
			t.Fatalf("case-insensitive search = %+v", search)
		}
		both, _ := posts.CountPosts(ctx, domain.PostFilter{Category: "tech", Search: "go"})
		if both != 2 {
			t.Fatalf("CountPosts(tech, go) = %d, want 2", both)
		}
		literal, _ := posts.CountPosts(ctx, domain.PostFilter{Search: "100%"})
		if literal != 1 {
			t.Fatalf("search with %% wildcard matched %d posts, want 1", literal)
		}
		underscore, _ := posts.CountPosts(ctx, domain.PostFilter{Search: "n_s"})
		if underscore != 0 {
			t.Fatalf("underscore treated as wildcard, matched %d", underscore)
		}
		beyond, err := posts.FindPosts(ctx, domain.PostFilter{}, 10, 10)
		if err != nil || len(beyond) != 0 {
			t.Fatalf("FindPosts(past end) = %+v, %v", beyond, err)
		}

		got, err := posts.FindPostByID(ctx, ids[1])
		if err != nil {
			t.Fatalf("FindPostByID() error = %v", err)
		}
		got.Title = "Sourdough"
		got.UpdatedAt = base.Add(24 * time.Hour)
		if err := posts.UpdatePost(ctx, got); err != nil {
			t.Fatalf("UpdatePost() error = %v", err)
		}
		got, _ = posts.FindPostByID(ctx, ids[1])
		if got.Title != "Sourdough" || got.Content != "flour, water, salt" {
			t.Fatalf("UpdatePost() persisted %+v", got)
		}

		if _, err := posts.FindPostByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("FindPostByID(missing) error = %v", err)
		}
		if err := posts.UpdatePost(ctx, domain.Post{ID: uuid.NewString()}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("UpdatePost(missing) error = %v", err)
		}

		cafe := domain.Post{
			ID:        uuid.NewString(),
			Title:     "CAFÉ CULTURE",
			Content:   "Ölfarben und Straßencafés",
			Category:  "travel",
			AuthorID:  alice.ID,
			CreatedAt: base.Add(-time.Hour),
			UpdatedAt: base.Add(-time.Hour),
		}
		if err := posts.CreatePost(ctx, cafe); err != nil {
			t.Fatalf("CreatePost(non-ascii) error = %v", err)
		}
		ids = append(ids, cafe.ID)
		for _, q := range []string{"café", "CAFÉ", "Café", "ölfarben", "STRAßENCAFÉS"} {
			if n, err := posts.CountPosts(ctx, domain.PostFilter{Search: q}); err != nil || n != 1 {
				t.Fatalf("CountPosts(search %q) = %d, %v, want 1", q, n, err)
			}
		}
	})

	t.Run("comments", func(t *testing.T) {
		first := domain.Comment{ID: uuid.NewString(), PostID: ids[0], AuthorID: bob.ID, Text: "nice", CreatedAt: base}
		second := domain.Comment{ID: uuid.NewString(), PostID: ids[0], AuthorID: alice.ID, Text: "thanks", CreatedAt: base.Add(time.Minute)}
		for _, c := range []domain.Comment{first, second} {
			if err := comments.CreateComment(ctx, c); err != nil {
				t.Fatalf("CreateComment() error = %v", err)
			}
		}
		bad := domain.Comment{ID: uuid.NewString(), PostID: uuid.NewString(), AuthorID: bob.ID, Text: "?", CreatedAt: base}
		if err := comments.CreateComment(ctx, bad); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("CreateComment(missing post) error = %v", err)
		}

		list, err := comments.ListComments(ctx, ids[0])
		if err != nil || len(list) != 2 {
			t.Fatalf("ListComments() = %+v, %v", list, err)
		}
		if list[0].ID != second.ID || list[0].Author == nil || list[0].Author.Name != "Alice" {
			t.Fatalf("ListComments() order/author = %+v", list[0])
		}
		got, err := comments.GetComment(ctx, first.ID)
		if err != nil || got.AuthorID != bob.ID {
			t.Fatalf("GetComment() = %+v, %v", got, err)
		}
		if err := comments.DeleteComment(ctx, first.ID); err != nil {
			t.Fatalf("DeleteComment() error = %v", err)
		}
		if err := comments.DeleteComment(ctx, first.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("second DeleteComment() error = %v", err)
		}
	})

	t.Run("cascade", func(t *testing.T) {
		if err := posts.DeletePost(ctx, ids[2]); err != nil {
			t.Fatalf("DeletePost() error = %v", err)
		}
		if err := posts.DeletePost(ctx, ids[2]); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("second DeletePost() error = %v", err)
		}

		removed, err := users.DeleteUser(ctx, alice.ID)
		if err != nil {
			t.Fatalf("DeleteUser() error = %v", err)
		}
		want := []string{ids[0], ids[1], ids[3]}
		sort.Strings(want)
		if !reflect.DeepEqual(removed, want) {
			t.Fatalf("DeleteUser() removed %v, want %v", removed, want)
		}
		if n, _ := posts.CountPosts(ctx, domain.PostFilter{}); n != 0 {
			t.Fatalf("posts left after author removal: %d", n)
		}
		if list, _ := comments.ListComments(ctx, ids[0]); len(list) != 0 {
			t.Fatalf("comments left after cascade: %+v", list)
		}
		if _, err := users.DeleteUser(ctx, alice.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("second DeleteUser() error = %v", err)
		}
	})
}
