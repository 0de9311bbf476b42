package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/adeilh/scribe/ai"
	"github.com/adeilh/scribe/api"
	"github.com/adeilh/scribe/auth"
	"github.com/adeilh/scribe/blog"
	"github.com/adeilh/scribe/cache"
	"github.com/adeilh/scribe/cache/memory"
	"github.com/adeilh/scribe/cache/redis"
	"github.com/adeilh/scribe/config"
	"github.com/adeilh/scribe/db/sqlstore"
	"github.com/adeilh/scribe/httpx"
	"github.com/adeilh/scribe/media"
	"github.com/adeilh/scribe/postcache"
	"github.com/adeilh/scribe/ratelimit"
	"github.com/adeilh/scribe/telemetry"
)

const janitorInterval = time.Minute

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting scribe", slog.String("version", version), slog.String("addr", cfg.Server.Addr))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *telemetry.Metrics
	if cfg.Telemetry.Metrics {
		metrics = telemetry.NewMetrics(reg)
	}

	// Source of truth
	db, err := sqlstore.Open(ctx,
		sqlstore.WithDialect(sqlstore.Dialect(cfg.Database.Driver)),
		sqlstore.WithDSN(cfg.Database.DSN),
		sqlstore.WithMaxOpenConns(cfg.Database.MaxOpenConns),
		sqlstore.WithMaxIdleConns(cfg.Database.MaxIdleConns),
		sqlstore.WithConnMaxLifetime(cfg.Database.ConnMaxLifetime),
	)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}
	posts := sqlstore.NewPostRepository(db)
	users := sqlstore.NewUserRepository(db)
	comments := sqlstore.NewCommentRepository(db)

	// Cache
	store, err := openCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Connect(ctx); err != nil {
		// reads fall back to the database until the cache comes back
		log.Warn("cache unreachable at startup", slog.String("driver", cfg.Cache.Driver), slog.Any("error", err))
	}

	cacheOpts := postcache.Options{
		ListingTTL: cfg.Cache.ListingTTL,
		EntityTTL:  cfg.Cache.EntityTTL,
		OpTimeout:  cfg.Cache.OpTimeout,
		Logger:     log,
		Metrics:    metrics,
	}
	reader := postcache.NewReader(store, posts, cacheOpts)
	inv := postcache.NewInvalidator(store, cacheOpts, postcache.InvalidationPolicy{
		Attempts:      cfg.Cache.Invalidation.Attempts,
		Backoff:       cfg.Cache.Invalidation.Backoff,
		QueueSize:     cfg.Cache.Invalidation.QueueSize,
		RetryAttempts: cfg.Cache.Invalidation.RetryAttempts,
		RetryBackoff:  cfg.Cache.Invalidation.RetryBackoff,
	})

	// Services
	tokens, err := auth.NewJWTProvider(auth.JWTProviderConfig{
		Secret:        []byte(cfg.Auth.JWTSecret),
		Issuer:        cfg.Auth.Issuer,
		TTL:           cfg.Auth.TokenTTL,
		Store:         store,
		LookupTimeout: cfg.Cache.OpTimeout,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	postSvc, err := blog.NewPostService(blog.PostServiceConfig{Repository: posts, Invalidator: inv, Logger: log})
	if err != nil {
		return err
	}
	commentSvc, err := blog.NewCommentService(blog.CommentServiceConfig{Posts: posts, Comments: comments})
	if err != nil {
		return err
	}
	userSvc, err := blog.NewUserService(blog.UserServiceConfig{
		Users:       users,
		Hasher:      auth.NewBcryptHasher(auth.WithBcryptCost(cfg.Auth.BcryptCost)),
		Tokens:      tokens,
		Invalidator: inv,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		name := cfg.Auth.AdminName
		if name == "" {
			name = "Administrator"
		}
		if _, err := userSvc.EnsureAdmin(ctx, blog.Registration{
			Name:     name,
			Email:    cfg.Auth.AdminEmail,
			Password: cfg.Auth.AdminPassword,
		}); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	assistant, err := newAssistant(cfg.AI, log, metrics)
	if err != nil {
		return err
	}
	covers, err := newCovers(ctx, cfg.Media, log)
	if err != nil {
		return err
	}

	policies := cfg.Policies()
	limiters := make(map[string]*ratelimit.Limiter, len(policies))
	var (
		active  []*ratelimit.Limiter
		longest time.Duration
	)
	for name, p := range policies {
		if !p.Enabled() {
			log.Info("rate limit disabled", slog.String("policy", name))
			continue
		}
		l := ratelimit.New(p, nil)
		limiters[name] = l
		active = append(active, l)
		longest = max(longest, p.Window)
	}

	handlers, err := api.New(api.Deps{
		Reader:    reader,
		Posts:     postSvc,
		Comments:  commentSvc,
		Users:     userSvc,
		Tokens:    tokens,
		Assistant: assistant,
		Covers:    covers,
		Limiters:  limiters,
		Metrics:   metrics,
		Gatherer:  reg,
		Database:  db.Ping,
		Cache:     store.Connect,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	serverOpts := []httpx.ServerOption{
		httpx.WithAddress(cfg.Server.Addr),
		httpx.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpx.WithLogger(log),
		httpx.AppendMiddlewares(
			httpx.RequestLogger(log, metrics),
			httpx.BodyLimit(bodyLimit(covers.MaxSize())),
		),
		httpx.WithCORS(corsConfig(cfg.Server.CORSOrigins)),
	}
	if cfg.Server.TrustProxy {
		serverOpts = append(serverOpts, httpx.WithIPExtractor(echo.ExtractIPFromXFFHeader()))
	} else {
		serverOpts = append(serverOpts, httpx.WithIPExtractor(echo.ExtractIPDirect()))
	}
	server := httpx.NewServer(serverOpts...)
	server.RegisterRoutes(handlers.Register)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, httpx.WithShutdownTimeout(cfg.Server.ShutdownTimeout))
	})
	g.Go(func() error { return inv.Run(gctx) })
	g.Go(func() error {
		return ratelimit.Janitor(gctx, janitorInterval, longest, log, active...)
	})
	err = g.Wait()
	log.Info("scribe stopped")
	return err
}

func openCache(cfg config.CacheConfig) (cache.Backend, error) {
	switch cfg.Driver {
	case "redis":
		return redis.NewStore(redis.Options{
			URL:      cfg.URL,
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case "memory", "":
		return memory.NewStore(memory.Options{
			MaximumSize: cfg.MaxEntries,
			Pinned:      []string{auth.RevokedKeyPrefix},
		})
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

func newAssistant(cfg config.AIConfig, log *slog.Logger, m *telemetry.Metrics) (*ai.Assistant, error) {
	if cfg.APIKey == "" {
		log.Info("ai helpers disabled: no api key")
		return ai.NewAssistant(nil, ai.WithLogger(log)), nil
	}
	model, err := ai.NewGemini(ai.GeminiConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
	})
	if err != nil {
		return nil, err
	}
	return ai.NewAssistant(model, ai.WithLogger(log), ai.WithMetrics(m)), nil
}

func newCovers(ctx context.Context, cfg config.MediaConfig, log *slog.Logger) (*media.Covers, error) {
	if cfg.Endpoint == "" {
		log.Info("cover uploads disabled: no media endpoint")
		return media.NewCovers(nil, media.WithMaxSize(cfg.MaxSize)), nil
	}
	store, err := media.NewMinioStore(media.MinioConfig{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		PathStyle: cfg.PathStyle,
		PublicURL: cfg.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	if cfg.CreateBucket {
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return media.NewCovers(store, media.WithMaxSize(cfg.MaxSize)), nil
}

// bodyLimit leaves room for the form fields next to the largest cover.
func bodyLimit(maxCover int64) string {
	return strconv.FormatInt(maxCover/1024+1024, 10) + "K"
}

func corsConfig(origins []string) *httpx.CORSConfig {
	cfg := httpx.DefaultCORSConfig
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	}
	return &cfg
}
