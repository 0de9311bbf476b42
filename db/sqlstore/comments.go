package sqlstore

import (
	"context"

	"github.com/adeilh/scribe/domain"
)

// CommentRepository persists comments and implements domain.CommentRepository.
type CommentRepository struct {
	db *DB
}

var _ domain.CommentRepository = (*CommentRepository)(nil)

func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) CreateComment(ctx context.Context, c domain.Comment) error {
	_, err := r.db.exec(ctx,
		`INSERT INTO comments (id, post_id, author_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.AuthorID, c.Text, c.CreatedAt.UTC(),
	)
	return translate(err)
}

func (r *CommentRepository) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	var c domain.Comment
	err := r.db.queryRow(ctx,
		`SELECT id, post_id, author_id, text, created_at FROM comments WHERE id = ?`, id,
	).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt)
	if err != nil {
		return domain.Comment{}, translate(err)
	}
	return c, nil
}

func (r *CommentRepository) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	rows, err := r.db.query(ctx,
		`SELECT c.id, c.post_id, c.author_id, c.text, c.created_at, COALESCE(u.name, ''), COALESCE(u.email, '')
		 FROM comments c LEFT JOIN users u ON u.id = c.author_id
		 WHERE c.post_id = ? ORDER BY c.created_at DESC, c.id DESC`, postID,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		var (
			c      domain.Comment
			author domain.Author
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt, &author.Name, &author.Email); err != nil {
			return nil, err
		}
		author.ID = c.AuthorID
		c.Author = &author
		comments = append(comments, c)
	}
	return comments, translate(rows.Err())
}

func (r *CommentRepository) DeleteComment(ctx context.Context, id string) error {
	return affected(r.db.exec(ctx, `DELETE FROM comments WHERE id = ?`, id))
}
