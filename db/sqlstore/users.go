package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/adeilh/scribe/domain"
)

// UserRepository persists accounts and implements domain.UserRepository.
type UserRepository struct {
	db *DB
}

var _ domain.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func (r *UserRepository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, string(u.Role), u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	return translate(err)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = ?`, strings.ToLower(email))
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, translate(rows.Err())
}

// DeleteUser removes the user together with their posts, the comments on
// those posts and the comments they wrote elsewhere. The returned ids are
// the posts removed by the same transaction; the user row is locked first
// so no post can be added to the set while it runs.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := r.db.tx(ctx, func(tx *sql.Tx) error {
		if r.db.dialect == Postgres {
			// holds off concurrent post inserts, which need a key share lock
			if _, err := tx.ExecContext(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
				return translate(err)
			}
		}
		rows, err := tx.QueryContext(ctx, r.db.rebind(`SELECT id FROM posts WHERE author_id = ? ORDER BY id`), id)
		if err != nil {
			return translate(err)
		}
		for rows.Next() {
			var pid string
			if err := rows.Scan(&pid); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, pid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return translate(err)
		}

		stmts := []string{
			`DELETE FROM comments WHERE author_id = ? OR post_id IN (SELECT id FROM posts WHERE author_id = ?)`,
			`DELETE FROM posts WHERE author_id = ?`,
		}
		args := [][]any{{id, id}, {id}}
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, r.db.rebind(stmt), args[i]...); err != nil {
				return translate(err)
			}
		}
		return affected(tx.ExecContext(ctx, r.db.rebind(`DELETE FROM users WHERE id = ?`), id))
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	u, err := scanUser(r.db.queryRow(ctx, query, arg))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return u, nil
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}
