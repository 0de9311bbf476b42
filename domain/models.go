// Package domain holds the blog's entities and the repository contracts
// shared by the cache, storage and service layers.
package domain

import "time"

// Role gates administrative operations.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered account. PasswordHash never leaves the service
// layer; API responses use PublicUser.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// PublicUser is the externally visible projection of a User.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips credentials.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// Author is the resolved author reference embedded in posts and comments.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Post is a blog entry. Author is populated on reads.
type Post struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	CoverImage string    `json:"coverImage,omitempty"`
	AuthorID   string    `json:"-"`
	Author     *Author   `json:"author,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PostPage is one page of a filtered listing.
type PostPage struct {
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Pages int    `json:"pages"`
	Posts []Post `json:"posts"`
}

// PostPatch carries the fields an update may overwrite. Empty strings
// leave the stored value untouched.
type PostPatch struct {
	Title      string
	Content    string
	Category   string
	CoverImage string
}

// Empty reports whether the patch would change nothing.
func (p PostPatch) Empty() bool {
	return p.Title == "" && p.Content == "" && p.Category == "" && p.CoverImage == ""
}

// Apply overwrites the non-empty fields of p onto post.
func (p PostPatch) Apply(post Post) Post {
	if p.Title != "" {
		post.Title = p.Title
	}
	if p.Content != "" {
		post.Content = p.Content
	}
	if p.Category != "" {
		post.Category = p.Category
	}
	if p.CoverImage != "" {
		post.CoverImage = p.CoverImage
	}
	return post
}

// Comment is a reader's reply on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"-"`
	Author    *Author   `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
