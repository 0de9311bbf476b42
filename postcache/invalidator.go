package postcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adeilh/scribe/cache"
)

const (
	EventPostCreated  = "post_created"
	EventPostUpdated  = "post_updated"
	EventPostDeleted  = "post_deleted"
	EventPostsRemoved = "posts_removed"
)

const (
	outcomeOK      = "ok"
	outcomeQueued  = "queued"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
)

// purge is one invalidation: drop the listed entity keys, then every
// listing key.
type purge struct {
	event      string
	entityKeys []string
}

// Invalidator removes cache entries made stale by a successful write.
// Its methods never fail the caller; errors are logged, counted and,
// depending on the policy, retried in the background.
type Invalidator struct {
	store  cache.Store
	opts   Options
	policy InvalidationPolicy
	queue  *retryQueue
	sleep  func(context.Context, time.Duration) error
}

// NewInvalidator builds an Invalidator. When the policy enables a retry
// queue, Run must be started for queued purges to be retried.
func NewInvalidator(store cache.Store, opts Options, policy InvalidationPolicy) *Invalidator {
	cfg := opts.withDefaults()
	pol := policy.withDefaults()
	inv := &Invalidator{store: store, opts: cfg, policy: pol, sleep: sleepContext}
	if pol.QueueSize > 0 {
		inv.queue = newRetryQueue(pol.QueueSize)
	}
	return inv
}

// PostCreated drops every listing page.
func (i *Invalidator) PostCreated(ctx context.Context, id string) {
	i.invalidate(ctx, purge{event: EventPostCreated})
}

// PostUpdated drops the post's entity entry and every listing page.
func (i *Invalidator) PostUpdated(ctx context.Context, id string) {
	i.invalidate(ctx, purge{event: EventPostUpdated, entityKeys: []string{PostKey(id)}})
}

// PostDeleted drops the post's entity entry and every listing page.
func (i *Invalidator) PostDeleted(ctx context.Context, id string) {
	i.invalidate(ctx, purge{event: EventPostDeleted, entityKeys: []string{PostKey(id)}})
}

// PostsRemoved handles bulk removal, e.g. when a user's posts cascade.
func (i *Invalidator) PostsRemoved(ctx context.Context, ids ...string) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, PostKey(id))
	}
	i.invalidate(ctx, purge{event: EventPostsRemoved, entityKeys: keys})
}

func (i *Invalidator) invalidate(ctx context.Context, p purge) {
	// the write already happened; a client disconnect must not skip the purge
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 0; attempt < i.policy.Attempts; attempt++ {
		if attempt > 0 {
			_ = i.sleep(ctx, i.policy.Backoff)
		}
		var n int
		if n, err = i.purge(ctx, p); err == nil {
			i.opts.Metrics.Invalidation(p.event, outcomeOK, n)
			i.opts.Logger.DebugContext(ctx, "cache invalidated", slog.String("event", p.event), slog.Int("keys", n))
			return
		}
	}

	log := i.opts.Logger.With(slog.String("event", p.event), slog.Any("entity_keys", p.entityKeys), slog.Any("error", err))
	if i.queue != nil && i.queue.push(p) {
		i.opts.Metrics.Invalidation(p.event, outcomeQueued, 0)
		i.opts.Metrics.RetryQueue(i.queue.len())
		log.WarnContext(ctx, "cache invalidation failed, queued for retry")
		return
	}
	i.opts.Metrics.Invalidation(p.event, outcomeFailed, 0)
	if i.queue != nil {
		i.opts.Metrics.RetryDrop()
	}
	log.ErrorContext(ctx, "cache invalidation failed, stale entries may be served until expiry")
}

// purge deletes the entity keys and then all listing keys. Both halves
// are attempted even if the first fails.
func (i *Invalidator) purge(ctx context.Context, p purge) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, i.opts.PurgeTimeout)
	defer cancel()

	var errs []error
	removed := 0
	if len(p.entityKeys) > 0 {
		if err := i.store.DeleteMany(ctx, p.entityKeys...); err != nil {
			errs = append(errs, fmt.Errorf("delete entity keys: %w", err))
		} else {
			removed += len(p.entityKeys)
		}
	}
	n, err := cache.DeletePattern(ctx, i.store, ListingPattern)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete listing keys: %w", err))
	}
	removed += n
	return removed, errors.Join(errs...)
}

// Run retries queued purges until ctx is done. It returns nil when the
// policy has no retry queue.
func (i *Invalidator) Run(ctx context.Context) error {
	if i.queue == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-i.queue.jobs:
			i.opts.Metrics.RetryQueue(i.queue.len())
			i.retry(ctx, p)
		}
	}
}

func (i *Invalidator) retry(ctx context.Context, p purge) {
	backoff := i.policy.RetryBackoff
	var err error
	for attempt := 0; attempt < i.policy.RetryAttempts; attempt++ {
		if err = i.sleep(ctx, backoff); err != nil {
			return
		}
		backoff *= 2
		var n int
		if n, err = i.purge(ctx, p); err == nil {
			i.opts.Metrics.Invalidation(p.event, outcomeOK, n)
			i.opts.Logger.InfoContext(ctx, "queued cache invalidation succeeded",
				slog.String("event", p.event), slog.Int("attempt", attempt+1))
			return
		}
	}
	i.opts.Metrics.Invalidation(p.event, outcomeDropped, 0)
	i.opts.Metrics.RetryDrop()
	i.opts.Logger.ErrorContext(ctx, "giving up on cache invalidation",
		slog.String("event", p.event), slog.Int("attempts", i.policy.RetryAttempts), slog.Any("error", err))
}

// Pending reports how many purges wait for a background retry.
func (i *Invalidator) Pending() int {
	if i.queue == nil {
		return 0
	}
	return i.queue.len()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
