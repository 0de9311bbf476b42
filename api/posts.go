package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/adeilh/scribe/blog"
	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/httpx"
	"github.com/adeilh/scribe/media"
	"github.com/adeilh/scribe/postcache"
)

// SourceHeader marks whether a read was served from the cache or the
// database.
const SourceHeader = "X-Cache-Source"

const coverField = "coverImage"

type listResponse struct {
	domain.PostPage
	Source postcache.Origin `json:"source"`
}

// postForm accepts both JSON and multipart bodies.
type postForm struct {
	Title    string `json:"title" form:"title"`
	Content  string `json:"content" form:"content"`
	Category string `json:"category" form:"category"`
}

func (a *API) listPosts(c httpx.Context) error {
	q := domain.ListQuery{
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}
	page, origin, err := a.reader.ListPosts(c.Request().Context(), q)
	if err != nil {
		return a.writeError(c, err, "Post")
	}
	if page.Posts == nil {
		page.Posts = []domain.Post{}
	}
	c.Response().Header().Set(SourceHeader, string(origin))
	return c.JSON(httpx.StatusOK, listResponse{PostPage: page, Source: origin})
}

func (a *API) getPost(c httpx.Context) error {
	post, origin, err := a.reader.GetPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.writeError(c, err, "Post")
	}
	msg := "Post fetched successfully"
	if origin == postcache.OriginCache {
		msg += " (from cache)"
	}
	c.Response().Header().Set(SourceHeader, string(origin))
	return c.JSON(httpx.StatusOK, map[string]any{"message": msg, "post": post})
}

func (a *API) createPost(c httpx.Context) error {
	var f postForm
	if err := c.Bind(&f); err != nil {
		return message(c, httpx.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	cover, err := a.receiveCover(c)
	if err != nil {
		return a.coverError(c, err)
	}
	post, err := a.posts.Create(ctx, actor(c), blog.PostInput{
		Title:      f.Title,
		Content:    f.Content,
		Category:   f.Category,
		CoverImage: cover,
	})
	if err != nil {
		a.discardCover(ctx, cover)
		return a.writeError(c, err, "Post")
	}
	return c.JSON(httpx.StatusCreated, map[string]any{"message": "Post created successfully", "post": post})
}

func (a *API) updatePost(c httpx.Context) error {
	var f postForm
	if err := c.Bind(&f); err != nil {
		return message(c, httpx.StatusBadRequest, "Invalid request body")
	}
	ctx := c.Request().Context()
	cover, err := a.receiveCover(c)
	if err != nil {
		return a.coverError(c, err)
	}
	post, err := a.posts.Update(ctx, actor(c), c.Param("id"), domain.PostPatch{
		Title:      f.Title,
		Content:    f.Content,
		Category:   f.Category,
		CoverImage: cover,
	})
	if err != nil {
		a.discardCover(ctx, cover)
		if errors.Is(err, domain.ErrForbidden) {
			return message(c, httpx.StatusForbidden, "You are not authorized to update this post")
		}
		return a.writeError(c, err, "Post")
	}
	return c.JSON(httpx.StatusOK, map[string]any{"message": "Post updated successfully", "post": post})
}

func (a *API) deletePost(c httpx.Context) error {
	err := a.posts.Delete(c.Request().Context(), actor(c), c.Param("id"))
	if errors.Is(err, domain.ErrForbidden) {
		return message(c, httpx.StatusForbidden, "You are not authorized to delete this post")
	}
	if err != nil {
		return a.writeError(c, err, "Post")
	}
	return message(c, httpx.StatusOK, "Post deleted successfully")
}

// receiveCover stores the optional cover image of a multipart request and
// returns its URL. Requests without a file yield "".
func (a *API) receiveCover(c httpx.Context) (string, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return "", nil
	}
	fh, err := c.FormFile(coverField)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !a.covers.Enabled() {
		return "", media.ErrUploadsDisabled
	}
	if fh.Size > a.covers.MaxSize() {
		return "", media.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return a.covers.Upload(c.Request().Context(), media.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        f,
	})
}

func (a *API) coverError(c httpx.Context, err error) error {
	switch {
	case errors.Is(err, media.ErrUploadsDisabled):
		return message(c, httpx.StatusBadRequest, "Image uploads are not enabled")
	case errors.Is(err, media.ErrNotImage):
		return message(c, httpx.StatusBadRequest, "Only image files are allowed!")
	case errors.Is(err, media.ErrTooLarge):
		return message(c, httpx.StatusRequestTooLarge, "Cover image is too large")
	}
	a.log.ErrorContext(c.Request().Context(), "cover upload failed", slog.Any("error", err))
	return message(c, httpx.StatusBadGateway, "Failed to store cover image")
}

// discardCover removes an uploaded cover whose post was never written.
func (a *API) discardCover(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := a.covers.Discard(context.WithoutCancel(ctx), url); err != nil {
		a.log.WarnContext(ctx, "orphaned cover not removed", slog.String("url", url), slog.Any("error", err))
	}
}

// queryInt parses a numeric query parameter; anything unparsable is 0 and
// falls back to the listing defaults.
func queryInt(c httpx.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
