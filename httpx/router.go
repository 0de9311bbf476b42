package httpx

import "github.com/labstack/echo/v4"

// Router wraps an echo group to provide chainable helpers for common verbs.
type Router struct {
	g *echo.Group
}

// NewRouter creates a router under an optional prefix with optional middleware.
func NewRouter(e *Echo, prefix string, mw ...MiddlewareFunc) *Router {
	if e == nil || e.Echo == nil {
		return &Router{}
	}
	return &Router{g: e.Group(prefix, mw...)}
}

// Group nests a router under prefix.
func (r *Router) Group(prefix string, mw ...MiddlewareFunc) *Router {
	if r.g == nil {
		return &Router{}
	}
	return &Router{g: r.g.Group(prefix, mw...)}
}

func (r *Router) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	r.add(echo.GET, path, h, mw...)
	return r
}

func (r *Router) POST(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	r.add(echo.POST, path, h, mw...)
	return r
}

func (r *Router) PUT(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	r.add(echo.PUT, path, h, mw...)
	return r
}

func (r *Router) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	r.add(echo.DELETE, path, h, mw...)
	return r
}

func (r *Router) add(method, path string, h HandlerFunc, mw ...MiddlewareFunc) {
	if r.g == nil || h == nil {
		return
	}
	r.g.Add(method, path, h, mw...)
}
