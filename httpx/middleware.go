package httpx

import (
	"net/http"

	"github.com/adeilh/scribe/auth"
)

// AuthMiddleware adapts auth.Middleware to echo. Rejections are written by
// the auth middleware's error handler; errors returned by downstream
// handlers reach echo's error handler unchanged.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusUnauthorized, "auth middleware missing")
			}
		}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			var err error
			downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				err = next(c)
			})
			mw.Handler(downstream).ServeHTTP(c.Response(), c.Request())
			return err
		}
	}
}
