package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/adeilh/scribe/httpx"
	"github.com/adeilh/scribe/telemetry"
)

// Middleware rejects requests over l's policy with 429 and a Retry-After
// header. Clients are keyed by their real IP.
func Middleware(l *Limiter, m *telemetry.Metrics) httpx.MiddlewareFunc {
	p := l.Policy()
	msg := p.Message
	if msg == "" {
		msg = "Too many requests, please try again later."
	}
	return func(next httpx.HandlerFunc) httpx.HandlerFunc {
		return func(c httpx.Context) error {
			d := l.Allow(c.RealIP())
			if d.Allowed {
				return next(c)
			}
			m.RateLimitReject(p.Name)
			c.Response().Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"success": false,
				"message": msg,
			})
		}
	}
}

// Janitor evicts idle buckets from every limiter each interval until ctx
// is done.
func Janitor(ctx context.Context, interval, idle time.Duration, log *slog.Logger, limiters ...*Limiter) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			for _, l := range limiters {
				if n := l.EvictStale(now.Add(-idle)); n > 0 && log != nil {
					log.DebugContext(ctx, "rate limit buckets evicted", slog.String("policy", l.Policy().Name), slog.Int("count", n))
				}
			}
		}
	}
}
