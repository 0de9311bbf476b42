package auth

import (
	"context"
	"errors"
	"net/http"
)

// Middleware authenticates requests with a bearer token and stores the
// parsed token in the request context.
type Middleware struct {
	parser       TokenParser
	errorHandler MiddlewareErrorHandler
}

type tokenContextKeyType struct{}

var tokenContextKey = tokenContextKeyType{}

func NewMiddleware(parser TokenParser, opts ...MiddlewareOption) (*Middleware, error) {
	if parser == nil {
		return nil, errors.New("auth: middleware requires a token parser")
	}
	m := &Middleware{parser: parser, errorHandler: defaultErrorHandler}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil {
		panic("auth: middleware is nil")
	}
	if next == nil {
		next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		token, err := m.parser.ParseToken(r.Context(), raw)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), token)))
	})
}

// ContextWithToken returns a copy of ctx carrying token.
func ContextWithToken(ctx context.Context, token JWTToken) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

func TokenFromContext(ctx context.Context) (JWTToken, bool) {
	if ctx == nil {
		return nil, false
	}
	token, ok := ctx.Value(tokenContextKey).(JWTToken)
	return token, ok
}
