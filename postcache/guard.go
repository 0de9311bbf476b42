package postcache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adeilh/scribe/cache"
	"github.com/adeilh/scribe/telemetry"
)

// guard bounds every store call with a short timeout and turns store
// failures into misses. A slow or unreachable cache never fails a read.
type guard struct {
	store   cache.Store
	timeout time.Duration
	log     *slog.Logger
	metrics *telemetry.Metrics
}

// get reports a miss for absent keys and for any store error.
func (g guard) get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data, err := g.store.Get(ctx, key)
	switch {
	case err == nil:
		return data, true
	case errors.Is(err, cache.ErrNotFound):
		return nil, false
	default:
		g.metrics.CacheStoreError("get")
		g.log.WarnContext(ctx, "cache get failed, reading through", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
}

// set is best effort; failures are logged and dropped.
func (g guard) set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.store.Set(ctx, key, data, ttl); err != nil {
		g.metrics.CacheStoreError("set")
		g.log.WarnContext(ctx, "cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}
