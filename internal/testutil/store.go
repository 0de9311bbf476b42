package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adeilh/scribe/cache"
)

// ErrStoreDown is returned by FlakyStore while it is failing.
var ErrStoreDown = errors.New("testutil: cache store unavailable")

// FlakyStore wraps a cache.Store and can be switched into a failing mode.
// It records the keys it was asked to delete.
type FlakyStore struct {
	cache.Store

	failing  atomic.Bool
	failures atomic.Int64
	// FailTimes, when positive, fails only that many operations before
	// recovering.
	FailTimes atomic.Int64

	mu      sync.Mutex
	deleted []string
}

func NewFlakyStore(inner cache.Store) *FlakyStore {
	return &FlakyStore{Store: inner}
}

// SetFailing switches every operation into (or out of) failure.
func (f *FlakyStore) SetFailing(v bool) { f.failing.Store(v) }

// Failures counts operations that returned ErrStoreDown.
func (f *FlakyStore) Failures() int64 { return f.failures.Load() }

// Deleted returns every key passed to Delete or DeleteMany.
func (f *FlakyStore) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *FlakyStore) fail() bool {
	if f.failing.Load() {
		f.failures.Add(1)
		return true
	}
	for {
		n := f.FailTimes.Load()
		if n <= 0 {
			return false
		}
		if f.FailTimes.CompareAndSwap(n, n-1) {
			f.failures.Add(1)
			return true
		}
	}
}

func (f *FlakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.fail() {
		return nil, ErrStoreDown
	}
	return f.Store.Get(ctx, key)
}

func (f *FlakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.fail() {
		return ErrStoreDown
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *FlakyStore) Delete(ctx context.Context, key string) error {
	if f.fail() {
		return ErrStoreDown
	}
	f.record(key)
	return f.Store.Delete(ctx, key)
}

func (f *FlakyStore) DeleteMany(ctx context.Context, keys ...string) error {
	if f.fail() {
		return ErrStoreDown
	}
	f.record(keys...)
	return f.Store.DeleteMany(ctx, keys...)
}

func (f *FlakyStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if f.fail() {
		return nil, ErrStoreDown
	}
	return f.Store.Keys(ctx, pattern)
}

func (f *FlakyStore) record(keys ...string) {
	f.mu.Lock()
	f.deleted = append(f.deleted, keys...)
	f.mu.Unlock()
}

// SlowStore delays every Get until ctx is done, simulating an
// unresponsive backend.
type SlowStore struct {
	cache.Store
}

func (s SlowStore) Get(ctx context.Context, key string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
