package blog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adeilh/scribe/domain"
)

// PostInput is the payload of a new post.
type PostInput struct {
	Title      string
	Content    string
	Category   string
	CoverImage string
}

// PostServiceConfig wires the dependencies required for PostService.
type PostServiceConfig struct {
	Repository  domain.PostRepository
	Invalidator Invalidator
	Logger      *slog.Logger
	Now         func() time.Time
}

// PostService creates, updates and deletes posts. Authorization checks
// read the repository directly, never the cache.
type PostService struct {
	repo domain.PostRepository
	inv  Invalidator
	log  *slog.Logger
	now  clock
}

func NewPostService(cfg PostServiceConfig) (*PostService, error) {
	if cfg.Repository == nil {
		return nil, errors.New("blog: post service requires a repository")
	}
	if cfg.Invalidator == nil {
		return nil, errors.New("blog: post service requires an invalidator")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &PostService{repo: cfg.Repository, inv: cfg.Invalidator, log: log, now: cfg.Now}, nil
}

// Create stores a new post owned by actor and drops every cached listing.
func (s *PostService) Create(ctx context.Context, actor Actor, in PostInput) (domain.Post, error) {
	if actor.ID == "" {
		return domain.Post{}, domain.ErrUnauthorized
	}
	in.Title, in.Content, in.Category = trim(in.Title), trim(in.Content), trim(in.Category)
	if in.Title == "" || in.Content == "" || in.Category == "" {
		return domain.Post{}, invalid("title, content and category are required")
	}

	now := s.now.now()
	post := domain.Post{
		ID:         newID(),
		Title:      in.Title,
		Content:    in.Content,
		Category:   in.Category,
		CoverImage: in.CoverImage,
		AuthorID:   actor.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return domain.Post{}, err
	}
	s.inv.PostCreated(ctx, post.ID)
	s.log.InfoContext(ctx, "post created", slog.String("post_id", post.ID), slog.String("author_id", actor.ID))
	return post, nil
}

// Update overwrites the non-empty fields of patch. Only the author may
// update a post.
func (s *PostService) Update(ctx context.Context, actor Actor, id string, patch domain.PostPatch) (domain.Post, error) {
	post, err := s.repo.FindPostByID(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	if !actor.owns(post.AuthorID) {
		return domain.Post{}, domain.ErrForbidden
	}

	patch.Title, patch.Content, patch.Category = trim(patch.Title), trim(patch.Content), trim(patch.Category)
	post = patch.Apply(post)
	post.UpdatedAt = s.now.now()
	if err := s.repo.UpdatePost(ctx, post); err != nil {
		return domain.Post{}, err
	}
	s.inv.PostUpdated(ctx, post.ID)
	return post, nil
}

// Delete removes a post and its comments. The author or an admin may
// delete.
func (s *PostService) Delete(ctx context.Context, actor Actor, id string) error {
	post, err := s.repo.FindPostByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.owns(post.AuthorID) && !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.repo.DeletePost(ctx, id); err != nil {
		return err
	}
	s.inv.PostDeleted(ctx, id)
	s.log.InfoContext(ctx, "post deleted", slog.String("post_id", id), slog.String("actor_id", actor.ID))
	return nil
}
