package blog

import (
	"context"
	"errors"
	"time"

	"github.com/adeilh/scribe/domain"
)

// CommentServiceConfig wires the dependencies required for CommentService.
type CommentServiceConfig struct {
	Posts    domain.PostReader
	Comments domain.CommentRepository
	Now      func() time.Time
}

// CommentService manages comments. Comments are not embedded in cached
// post payloads, so nothing here touches the cache.
type CommentService struct {
	posts    domain.PostReader
	comments domain.CommentRepository
	now      clock
}

func NewCommentService(cfg CommentServiceConfig) (*CommentService, error) {
	if cfg.Posts == nil || cfg.Comments == nil {
		return nil, errors.New("blog: comment service requires post and comment repositories")
	}
	return &CommentService{posts: cfg.Posts, comments: cfg.Comments, now: cfg.Now}, nil
}

// Create adds a comment to an existing post.
func (s *CommentService) Create(ctx context.Context, actor Actor, postID, text string) (domain.Comment, error) {
	if actor.ID == "" {
		return domain.Comment{}, domain.ErrUnauthorized
	}
	text = trim(text)
	if text == "" {
		return domain.Comment{}, invalid("text is required")
	}
	if _, err := s.posts.FindPostByID(ctx, postID); err != nil {
		return domain.Comment{}, err
	}
	c := domain.Comment{
		ID:        newID(),
		PostID:    postID,
		Text:      text,
		AuthorID:  actor.ID,
		CreatedAt: s.now.now(),
	}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

// List returns a post's comments newest first.
func (s *CommentService) List(ctx context.Context, postID string) ([]domain.Comment, error) {
	return s.comments.ListComments(ctx, postID)
}

// Delete removes a comment. The author or an admin may delete.
func (s *CommentService) Delete(ctx context.Context, actor Actor, id string) error {
	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if !actor.owns(c.AuthorID) && !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	return s.comments.DeleteComment(ctx, id)
}
