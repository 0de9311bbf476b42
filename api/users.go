package api

import (
	"errors"

	"github.com/adeilh/scribe/auth"
	"github.com/adeilh/scribe/blog"
	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/httpx"
)

type registerForm struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type sessionResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    domain.PublicUser `json:"user"`
}

func (a *API) register(c httpx.Context) error {
	var f registerForm
	if err := c.Bind(&f); err != nil {
		return message(c, httpx.StatusBadRequest, "Invalid request body")
	}
	s, err := a.users.Register(c.Request().Context(), blog.Registration{
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
	})
	if errors.Is(err, domain.ErrConflict) {
		return message(c, httpx.StatusBadRequest, "User already exists")
	}
	if err != nil {
		return a.writeError(c, err, "User")
	}
	return c.JSON(httpx.StatusCreated, sessionResponse{
		Message: "User registered successfully",
		Token:   s.Token.Raw(),
		User:    s.User.Public(),
	})
}

func (a *API) login(c httpx.Context) error {
	var f loginForm
	if err := c.Bind(&f); err != nil {
		return message(c, httpx.StatusBadRequest, "Invalid request body")
	}
	s, err := a.users.Login(c.Request().Context(), f.Email, f.Password)
	if errors.Is(err, blog.ErrInvalidCredentials) {
		return message(c, httpx.StatusBadRequest, "Invalid email or password")
	}
	if err != nil {
		return a.writeError(c, err, "User")
	}
	return c.JSON(httpx.StatusOK, sessionResponse{
		Message: "Login successful",
		Token:   s.Token.Raw(),
		User:    s.User.Public(),
	})
}

func (a *API) logout(c httpx.Context) error {
	token, ok := auth.TokenFromContext(c.Request().Context())
	if !ok {
		return message(c, httpx.StatusUnauthorized, auth.ErrorMessage(auth.ErrTokenNotFound))
	}
	if err := a.users.Logout(c.Request().Context(), token); err != nil {
		return a.writeError(c, err, "User")
	}
	return message(c, httpx.StatusOK, "Logged out successfully")
}

func (a *API) listUsers(c httpx.Context) error {
	users, err := a.users.List(c.Request().Context())
	if err != nil {
		return a.writeError(c, err, "User")
	}
	public := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return c.JSON(httpx.StatusOK, map[string]any{"count": len(public), "users": public})
}

func (a *API) deleteUser(c httpx.Context) error {
	if err := a.users.Delete(c.Request().Context(), c.Param("userId")); err != nil {
		return a.writeError(c, err, "User")
	}
	return message(c, httpx.StatusOK, "User deleted successfully")
}
