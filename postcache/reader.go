// Package postcache implements the cache-aside read path for posts and the
// write-triggered invalidation that keeps it honest.
package postcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adeilh/scribe/cache"
	"github.com/adeilh/scribe/domain"
	"github.com/adeilh/scribe/telemetry"
)

// Origin tells the caller where a response came from.
type Origin string

const (
	OriginCache    Origin = "cache"
	OriginDatabase Origin = "database"
)

const (
	kindListing = "listing"
	kindEntity  = "entity"
)

// Reader serves post reads from the cache, falling back to the source of
// truth on a miss and populating the cache with the result.
//
// Concurrent misses on the same key each query the source; the last write
// wins and all writes carry equivalent data.
type Reader struct {
	source domain.PostReader
	guard  guard
	opts   Options
}

// NewReader builds a Reader over store and source.
func NewReader(store cache.Store, source domain.PostReader, opts Options) *Reader {
	cfg := opts.withDefaults()
	return &Reader{
		source: source,
		guard:  guard{store: store, timeout: cfg.OpTimeout, log: cfg.Logger, metrics: cfg.Metrics},
		opts:   cfg,
	}
}

// ListPosts returns one page of posts matching q.
func (r *Reader) ListPosts(ctx context.Context, q domain.ListQuery) (domain.PostPage, Origin, error) {
	q = q.Normalize()
	key := ListingKey(q)

	var page domain.PostPage
	if r.lookup(ctx, kindListing, key, &page) {
		return page, OriginCache, nil
	}

	filter := q.Filter()
	total, err := r.source.CountPosts(ctx, filter)
	if err != nil {
		return domain.PostPage{}, "", fmt.Errorf("count posts: %w", err)
	}
	posts, err := r.source.FindPosts(ctx, filter, q.Skip(), q.Limit)
	if err != nil {
		return domain.PostPage{}, "", fmt.Errorf("find posts: %w", err)
	}
	if posts == nil {
		posts = []domain.Post{}
	}

	page = domain.PostPage{
		Total: total,
		Page:  q.Page,
		Pages: domain.PageCount(total, q.Limit),
		Posts: posts,
	}
	r.fill(ctx, key, page, r.opts.ListingTTL)
	return page, OriginDatabase, nil
}

// GetPost returns a single post with its author. Unknown ids yield
// domain.ErrNotFound and are not cached.
func (r *Reader) GetPost(ctx context.Context, id string) (domain.Post, Origin, error) {
	if id == "" {
		return domain.Post{}, "", domain.ErrNotFound
	}
	key := PostKey(id)

	var post domain.Post
	if r.lookup(ctx, kindEntity, key, &post) {
		return post, OriginCache, nil
	}

	post, err := r.source.FindPostByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Post{}, "", domain.ErrNotFound
		}
		return domain.Post{}, "", fmt.Errorf("find post: %w", err)
	}
	r.fill(ctx, key, post, r.opts.EntityTTL)
	return post, OriginDatabase, nil
}

// lookup decodes a cached value into dst. Undecodable payloads count as a
// miss and are overwritten by the subsequent fill.
func (r *Reader) lookup(ctx context.Context, kind, key string, dst any) bool {
	data, ok := r.guard.get(ctx, key)
	if !ok {
		r.opts.Metrics.CacheLookup(kind, telemetry.ResultMiss)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		r.opts.Metrics.CacheLookup(kind, telemetry.ResultCorrupt)
		r.opts.Logger.WarnContext(ctx, "discarding undecodable cache entry", slog.String("key", key), slog.Any("error", err))
		return false
	}
	r.opts.Metrics.CacheLookup(kind, telemetry.ResultHit)
	r.opts.Logger.DebugContext(ctx, "cache hit", slog.String("key", key))
	return true
}

func (r *Reader) fill(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		r.opts.Logger.ErrorContext(ctx, "encode cache entry", slog.String("key", key), slog.Any("error", err))
		return
	}
	r.guard.set(ctx, key, data, ttl)
}
