package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adeilh/scribe/blog"
	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/httpx"
)

const internalMessage = "Internal server error"

func message(c httpx.Context, code int, msg string) error {
	return c.JSON(code, map[string]any{"message": msg})
}

// writeError maps a service error onto a status code. notFound names the
// resource for 404 bodies.
func (a *API) writeError(c httpx.Context, err error, notFound string) error {
	var input *blog.InputError
	switch {
	case errors.As(err, &input):
		return message(c, httpx.StatusBadRequest, input.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		return message(c, httpx.StatusBadRequest, "Invalid request")
	case errors.Is(err, domain.ErrUnauthorized):
		return message(c, httpx.StatusUnauthorized, "Authentication required")
	case errors.Is(err, domain.ErrForbidden):
		return message(c, httpx.StatusForbidden, "Access denied")
	case errors.Is(err, domain.ErrNotFound):
		return message(c, httpx.StatusNotFound, notFound+" not found")
	case errors.Is(err, domain.ErrConflict):
		return message(c, httpx.StatusConflict, "Resource already exists")
	}
	a.log.ErrorContext(c.Request().Context(), "request failed",
		slog.String("method", c.Request().Method),
		slog.String("route", c.Path()),
		slog.Any("error", err))
	return message(c, httpx.StatusInternalError, internalMessage)
}

// errorHandler renders errors that escape the handlers: echo's own
// (unknown route, body limit, bind failures) and anything unexpected.
func (a *API) errorHandler(err error, c httpx.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := httpx.StatusInternalError, internalMessage
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case nil:
			msg = http.StatusText(code)
		default:
			msg = fmt.Sprint(m)
		}
	} else {
		a.log.ErrorContext(c.Request().Context(), "unhandled error",
			slog.String("route", c.Path()), slog.Any("error", err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = message(c, code, msg)
}
