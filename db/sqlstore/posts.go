package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/adeilh/scribe/domain"
)

// PostRepository persists posts and implements domain.PostRepository.
type PostRepository struct {
	db *DB
}

var _ domain.PostRepository = (*PostRepository)(nil)

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `p.id, p.title, p.content, p.category, p.cover_image, p.author_id, p.created_at, p.updated_at,
	COALESCE(u.name, ''), COALESCE(u.email, '')`

const postFrom = ` FROM posts p LEFT JOIN users u ON u.id = p.author_id`

func (r *PostRepository) CountPosts(ctx context.Context, f domain.PostFilter) (int, error) {
	where, args := postWhere(r.db.dialect, f)
	var n int
	if err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (r *PostRepository) FindPosts(ctx context.Context, f domain.PostFilter, skip, limit int) ([]domain.Post, error) {
	where, args := postWhere(r.db.dialect, f)
	args = append(args, limit, skip)
	rows, err := r.db.query(ctx,
		`SELECT `+postColumns+postFrom+where+` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, translate(rows.Err())
}

func (r *PostRepository) FindPostByID(ctx context.Context, id string) (domain.Post, error) {
	row := r.db.queryRow(ctx, `SELECT `+postColumns+postFrom+` WHERE p.id = ?`, id)
	p, err := scanPost(row)
	if err != nil {
		return domain.Post{}, translate(err)
	}
	return p, nil
}

func (r *PostRepository) CreatePost(ctx context.Context, p domain.Post) error {
	_, err := r.db.exec(ctx,
		`INSERT INTO posts (id, title, content, category, cover_image, author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Content, p.Category, p.CoverImage, p.AuthorID, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	return translate(err)
}

func (r *PostRepository) UpdatePost(ctx context.Context, p domain.Post) error {
	return affected(r.db.exec(ctx,
		`UPDATE posts SET title = ?, content = ?, category = ?, cover_image = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Content, p.Category, p.CoverImage, p.UpdatedAt.UTC(), p.ID,
	))
}

// DeletePost removes the post and its comments.
func (r *PostRepository) DeletePost(ctx context.Context, id string) error {
	return r.db.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM comments WHERE post_id = ?`), id); err != nil {
			return translate(err)
		}
		return affected(tx.ExecContext(ctx, r.db.rebind(`DELETE FROM posts WHERE id = ?`), id))
	})
}

// postWhere builds the filter clause. Search is a case-insensitive
// substring match on title or content with LIKE wildcards escaped; both
// sides are folded with the same Unicode rules.
func postWhere(d Dialect, f domain.PostFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Category != "" {
		clauses = append(clauses, `p.category = ?`)
		args = append(args, f.Category)
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		clauses = append(clauses, `(`+d.lower("p.title")+` LIKE ? ESCAPE '\' OR `+d.lower("p.content")+` LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (domain.Post, error) {
	var (
		p      domain.Post
		author domain.Author
	)
	err := s.Scan(&p.ID, &p.Title, &p.Content, &p.Category, &p.CoverImage, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt,
		&author.Name, &author.Email)
	if err != nil {
		return domain.Post{}, err
	}
	if author.Name != "" || author.Email != "" {
		author.ID = p.AuthorID
		p.Author = &author
	}
	return p, nil
}
