package api

import (
	"errors"

	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/httpx"
)

type commentForm struct {
	Text string `json:"text" form:"text"`
}

func (a *API) createComment(c httpx.Context) error {
	var f commentForm
	if err := c.Bind(&f); err != nil {
		return message(c, httpx.StatusBadRequest, "Invalid request body")
	}
	comment, err := a.comments.Create(c.Request().Context(), actor(c), c.Param("id"), f.Text)
	if err != nil {
		return a.writeError(c, err, "Post")
	}
	return c.JSON(httpx.StatusCreated, map[string]any{"message": "Comment created successfully", "comment": comment})
}

func (a *API) listComments(c httpx.Context) error {
	comments, err := a.comments.List(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.writeError(c, err, "Post")
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return c.JSON(httpx.StatusOK, map[string]any{"count": len(comments), "comments": comments})
}

func (a *API) deleteComment(c httpx.Context) error {
	err := a.comments.Delete(c.Request().Context(), actor(c), c.Param("commentId"))
	if errors.Is(err, domain.ErrForbidden) {
		return message(c, httpx.StatusForbidden, "You are not authorized to delete this comment")
	}
	if err != nil {
		return a.writeError(c, err, "Comment")
	}
	return message(c, httpx.StatusOK, "Comment deleted successfully")
}
