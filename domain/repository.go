package domain

import "context"

// PostReader is the read side of the post store. Find operations return
// ErrNotFound for unknown ids and resolve Author.
type PostReader interface {
	CountPosts(ctx context.Context, filter PostFilter) (int, error)
	// FindPosts returns matching posts newest first.
	FindPosts(ctx context.Context, filter PostFilter, skip, limit int) ([]Post, error)
	FindPostByID(ctx context.Context, id string) (Post, error)
}

// PostRepository is the authoritative post store.
type PostRepository interface {
	PostReader
	CreatePost(ctx context.Context, post Post) error
	UpdatePost(ctx context.Context, post Post) error
	DeletePost(ctx context.Context, id string) error
}

// UserRepository persists accounts. CreateUser returns ErrConflict when
// the email is taken; DeleteUser cascades the user's posts and comments
// atomically and returns the ids of the posts it removed.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) ([]string, error)
}

// CommentRepository persists comments.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment Comment) error
	GetComment(ctx context.Context, id string) (Comment, error)
	// ListComments returns a post's comments newest first with authors resolved.
	ListComments(ctx context.Context, postID string) ([]Comment, error)
	DeleteComment(ctx context.Context, id string) error
}
