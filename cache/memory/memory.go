// Package memory provides an in-process cache.Store backed by otter.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/tidwall/match"

	"github.com/adeilh/scribe/cache"
)

// entry wraps a cached value with its expiration time. A zero expiresAt
// never expires on its own.
type entry struct {
	data      []byte
	expiresAt time.Time
}

// Options configures the in-memory store.
type Options struct {
	// MaximumSize bounds the number of entries kept.
	MaximumSize int
	// MaxTTL is the hard upper bound on any entry's lifetime, including
	// entries written without a TTL.
	MaxTTL time.Duration
	// Pinned lists key prefixes kept outside the bounded cache: their
	// entries are never evicted for size and are not capped by MaxTTL,
	// but still expire with their own TTL.
	Pinned []string
	// Now overrides the clock used for per-entry expiry.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaximumSize <= 0 {
		o.MaximumSize = 10_000
	}
	if o.MaxTTL <= 0 {
		o.MaxTTL = 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// pruneEvery is how many pinned writes pass between sweeps of expired
// pinned entries.
const pruneEvery = 256

// Store is an in-memory W-TinyLFU cache.
type Store struct {
	cache  *otter.Cache[string, entry]
	now    func() time.Time
	closed atomic.Bool

	pinned []string
	mu     sync.Mutex
	kept   map[string]entry
	writes int
}

var _ cache.Backend = (*Store)(nil)

// NewStore creates an in-memory store.
func NewStore(opts Options) (*Store, error) {
	cfg := opts.withDefaults()
	c, err := otter.New[string, entry](&otter.Options[string, entry]{
		MaximumSize:      cfg.MaximumSize,
		ExpiryCalculator: otter.ExpiryWriting[string, entry](cfg.MaxTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("memory: create cache: %w", err)
	}
	return &Store{
		cache:  c,
		now:    cfg.Now,
		pinned: append([]string(nil), cfg.Pinned...),
		kept:   make(map[string]entry),
	}, nil
}

// Connect is a no-op; the store is usable as soon as it is built.
func (s *Store) Connect(context.Context) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}
	return nil
}

// Close drops every entry and rejects further use.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cache.InvalidateAll()
	s.mu.Lock()
	clear(s.kept)
	s.mu.Unlock()
	return nil
}

func (s *Store) isPinned(key string) bool {
	for _, p := range s.pinned {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (s *Store) lookup(key string) (entry, bool) {
	if s.isPinned(key) {
		s.mu.Lock()
		defer s.mu.Unlock()
		e, ok := s.kept[key]
		return e, ok
	}
	return s.cache.GetIfPresent(key)
}

func (s *Store) remove(key string) {
	if s.isPinned(key) {
		s.mu.Lock()
		delete(s.kept, key)
		s.mu.Unlock()
		return
	}
	s.cache.Invalidate(key)
}

func (s *Store) keep(key string, e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kept[key] = e
	s.writes++
	if s.writes%pruneEvery != 0 {
		return
	}
	for k, v := range s.kept {
		if s.expired(v) {
			delete(s.kept, k)
		}
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	e, ok := s.lookup(key)
	if !ok {
		return nil, cache.ErrNotFound
	}
	if s.expired(e) {
		s.remove(key)
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	e := entry{data: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	if s.isPinned(key) {
		s.keep(key, e)
		return nil
	}
	s.cache.Set(key, e)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.remove(key)
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, keys ...string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, k := range keys {
		s.remove(k)
	}
	return nil
}

// Keys returns live keys matching a Redis-style glob pattern.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var keys []string
	for k, e := range s.cache.All() {
		if s.expired(e) || !match.Match(k, pattern) {
			continue
		}
		keys = append(keys, k)
	}
	s.mu.Lock()
	for k, e := range s.kept {
		if !s.expired(e) && match.Match(k, pattern) {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()
	return keys, nil
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}
	return ctx.Err()
}
