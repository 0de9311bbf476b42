// Package api exposes the blog over HTTP: auth, posts, comments, user
// administration, writing helpers and the operational endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adeilh/scribe/ai"
	"github.com/adeilh/scribe/auth"
	"github.com/adeilh/scribe/blog"
	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/httpx"
	"github.com/adeilh/scribe/media"
	"github.com/adeilh/scribe/postcache"
	"github.com/adeilh/scribe/ratelimit"
	"github.com/adeilh/scribe/telemetry"
)

// PostReader serves post reads, reporting where each answer came from.
type PostReader interface {
	ListPosts(ctx context.Context, q domain.ListQuery) (domain.PostPage, postcache.Origin, error)
	GetPost(ctx context.Context, id string) (domain.Post, postcache.Origin, error)
}

// Checker probes a dependency for /readyz.
type Checker func(ctx context.Context) error

// Deps wires the handlers to the rest of the application.
type Deps struct {
	Reader    PostReader
	Posts     *blog.PostService
	Comments  *blog.CommentService
	Users     *blog.UserService
	Tokens    auth.TokenParser
	Assistant *ai.Assistant
	Covers    *media.Covers
	// Limiters are keyed by ratelimit policy name. Missing policies are
	// not enforced.
	Limiters map[string]*ratelimit.Limiter
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Database Checker
	Cache    Checker
	Logger   *slog.Logger
}

// API holds the HTTP handlers.
type API struct {
	reader    PostReader
	posts     *blog.PostService
	comments  *blog.CommentService
	users     *blog.UserService
	assistant *ai.Assistant
	covers    *media.Covers
	limiters  map[string]*ratelimit.Limiter
	metrics   *telemetry.Metrics
	gatherer  prometheus.Gatherer
	database  Checker
	cache     Checker
	log       *slog.Logger
	auth      *auth.Middleware
}

func New(d Deps) (*API, error) {
	switch {
	case d.Reader == nil:
		return nil, errors.New("api: post reader is required")
	case d.Posts == nil || d.Comments == nil || d.Users == nil:
		return nil, errors.New("api: post, comment and user services are required")
	case d.Tokens == nil:
		return nil, errors.New("api: token parser is required")
	}
	mw, err := auth.NewMiddleware(d.Tokens)
	if err != nil {
		return nil, err
	}
	a := &API{
		reader:    d.Reader,
		posts:     d.Posts,
		comments:  d.Comments,
		users:     d.Users,
		assistant: d.Assistant,
		covers:    d.Covers,
		limiters:  d.Limiters,
		metrics:   d.Metrics,
		gatherer:  d.Gatherer,
		database:  d.Database,
		cache:     d.Cache,
		log:       d.Logger,
		auth:      mw,
	}
	if a.assistant == nil {
		a.assistant = ai.NewAssistant(nil)
	}
	if a.covers == nil {
		a.covers = media.NewCovers(nil)
	}
	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a, nil
}

// Register mounts every route on e. It has the shape of
// httpx.RouteRegistrar.
func (a *API) Register(e *httpx.Echo) {
	e.HTTPErrorHandler = a.errorHandler

	e.GET("/healthz", a.health)
	e.GET("/readyz", a.ready)
	e.GET("/metrics", a.metricsHandler())

	authed := httpx.AuthMiddleware(a.auth)
	r := httpx.NewRouter(e, "/api", a.limit(ratelimit.General))

	r.POST("/auth/register", a.register, a.limit(ratelimit.Register)).
		POST("/auth/login", a.login, a.limit(ratelimit.Login)).
		POST("/auth/logout", a.logout, authed)

	r.GET("/posts", a.listPosts).
		GET("/posts/:id", a.getPost).
		POST("/posts", a.createPost, authed, a.limit(ratelimit.CreatePost)).
		PUT("/posts/:id", a.updatePost, authed).
		DELETE("/posts/:id", a.deletePost, authed)

	r.GET("/posts/:id/comments", a.listComments).
		POST("/posts/:id/comments", a.createComment, authed, a.limit(ratelimit.Comment)).
		DELETE("/comments/:commentId", a.deleteComment, authed)

	r.Group("/users", authed, requireAdmin).
		GET("", a.listUsers).
		DELETE("/:userId", a.deleteUser)

	aiLimit := a.limit(ratelimit.AI)
	r.POST("/summary", a.summarize, aiLimit).
		POST("/title-suggestion", a.suggestTitle, aiLimit).
		POST("/grammar-correct", a.correctGrammar, aiLimit)
}

// limit enforces the named policy, or nothing when it is not configured.
func (a *API) limit(policy string) httpx.MiddlewareFunc {
	l := a.limiters[policy]
	if l == nil || !l.Policy().Enabled() {
		return func(next httpx.HandlerFunc) httpx.HandlerFunc { return next }
	}
	return ratelimit.Middleware(l, a.metrics)
}

// actor returns the authenticated caller, or the zero Actor for anonymous
// requests.
func actor(c httpx.Context) blog.Actor {
	token, ok := auth.TokenFromContext(c.Request().Context())
	if !ok {
		return blog.Actor{}
	}
	claims := token.Claims()
	return blog.Actor{ID: claims.Subject, Role: domain.Role(claims.Role)}
}

func requireAdmin(next httpx.HandlerFunc) httpx.HandlerFunc {
	return func(c httpx.Context) error {
		if !actor(c).IsAdmin() {
			return message(c, httpx.StatusForbidden, "Access denied. Admins only.")
		}
		return next(c)
	}
}
