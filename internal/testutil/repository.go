// Package testutil provides in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/adeilh/scribe/domain"
)

// Repository is an in-memory implementation of the post, user and comment
// repositories. It counts source reads so tests can tell cache hits from
// database reads, and can be told to fail writes.
type Repository struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	posts    map[string]domain.Post
	comments map[string]domain.Comment

	CountCalls    atomic.Int64
	FindCalls     atomic.Int64
	FindByIDCalls atomic.Int64

	// WriteErr, when set, is returned by every write.
	WriteErr error
}

var (
	_ domain.PostRepository    = (*Repository)(nil)
	_ domain.UserRepository    = (*Repository)(nil)
	_ domain.CommentRepository = (*Repository)(nil)
)

func NewRepository() *Repository {
	return &Repository{
		users:    map[string]domain.User{},
		posts:    map[string]domain.Post{},
		comments: map[string]domain.Comment{},
	}
}

// SourceReads is the total number of post read queries served.
func (r *Repository) SourceReads() int64 {
	return r.CountCalls.Load() + r.FindCalls.Load() + r.FindByIDCalls.Load()
}

func (r *Repository) CountPosts(_ context.Context, f domain.PostFilter) (int, error) {
	r.CountCalls.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matching(f)), nil
}

func (r *Repository) FindPosts(_ context.Context, f domain.PostFilter, skip, limit int) ([]domain.Post, error) {
	r.FindCalls.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.matching(f)
	if skip >= len(all) {
		return []domain.Post{}, nil
	}
	end := min(skip+limit, len(all))
	out := make([]domain.Post, 0, end-skip)
	for _, p := range all[skip:end] {
		out = append(out, r.withAuthor(p))
	}
	return out, nil
}

func (r *Repository) FindPostByID(_ context.Context, id string) (domain.Post, error) {
	r.FindByIDCalls.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return r.withAuthor(p), nil
}

func (r *Repository) CreatePost(_ context.Context, p domain.Post) error {
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Author = nil
	r.posts[p.ID] = p
	return nil
}

func (r *Repository) UpdatePost(_ context.Context, p domain.Post) error {
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.ID]; !ok {
		return domain.ErrNotFound
	}
	p.Author = nil
	r.posts[p.ID] = p
	return nil
}

func (r *Repository) DeletePost(_ context.Context, id string) error {
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.posts, id)
	for cid, c := range r.comments {
		if c.PostID == id {
			delete(r.comments, cid)
		}
	}
	return nil
}

func (r *Repository) CreateUser(_ context.Context, u domain.User) error {
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrConflict
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *Repository) GetUserByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *Repository) ListUsers(context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) DeleteUser(_ context.Context, id string) ([]string, error) {
	if r.WriteErr != nil {
		return nil, r.WriteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return nil, domain.ErrNotFound
	}
	delete(r.users, id)
	var ids []string
	for pid, p := range r.posts {
		if p.AuthorID == id {
			delete(r.posts, pid)
			ids = append(ids, pid)
		}
	}
	for cid, c := range r.comments {
		_, postAlive := r.posts[c.PostID]
		if c.AuthorID == id || !postAlive {
			delete(r.comments, cid)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Repository) CreateComment(_ context.Context, c domain.Comment) error {
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[c.PostID]; !ok {
		return domain.ErrNotFound
	}
	c.Author = nil
	r.comments[c.ID] = c
	return nil
}

func (r *Repository) GetComment(_ context.Context, id string) (domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.comments[id]
	if !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	return c, nil
}

func (r *Repository) ListComments(_ context.Context, postID string) ([]domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Comment{}
	for _, c := range r.comments {
		if c.PostID != postID {
			continue
		}
		if u, ok := r.users[c.AuthorID]; ok {
			c.Author = &domain.Author{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) DeleteComment(_ context.Context, id string) error {
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

// matching returns filtered posts newest first. Callers hold mu.
func (r *Repository) matching(f domain.PostFilter) []domain.Post {
	search := strings.ToLower(f.Search)
	var out []domain.Post
	for _, p := range r.posts {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Content), search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *Repository) withAuthor(p domain.Post) domain.Post {
	if u, ok := r.users[p.AuthorID]; ok {
		p.Author = &domain.Author{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return p
}
