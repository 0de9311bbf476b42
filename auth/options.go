package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrTokenNotFound     = errors.New("auth: token not found")
	ErrTokenInvalidInput = errors.New("auth: malformed authorization header")
)

// MiddlewareErrorHandler writes the response for a rejected request.
type MiddlewareErrorHandler func(http.ResponseWriter, *http.Request, error)

type MiddlewareOption func(*Middleware)

// WithErrorHandler replaces the default JSON rejection.
func WithErrorHandler(handler MiddlewareErrorHandler) MiddlewareOption {
	return func(m *Middleware) {
		if handler != nil {
			m.errorHandler = handler
		}
	}
}

// bearerToken reads the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrTokenNotFound
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrTokenInvalidInput
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": ErrorMessage(err)})
}

// ErrorMessage is the client-facing text for an authentication failure.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrTokenNotFound):
		return "No token provided, authorization denied"
	case errors.Is(err, ErrJWTExpired):
		return "Token has expired"
	case errors.Is(err, ErrJWTRevoked):
		return "Token has been revoked"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	default:
		return "Token is not valid"
	}
}
