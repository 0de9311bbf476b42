package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cache: key not found")
	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("cache: store closed")
)

// Store represents a simple TTL-based cache abstraction that can be backed
// by memory, Redis, or any other KV store.
//
// Delete and DeleteMany are idempotent: removing an absent key is not an
// error. Keys enumerates stored keys matching a glob pattern such as
// "posts:*".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Conn is the lifecycle half of a networked store. Connect verifies the
// backend is reachable; Close releases its resources.
type Conn interface {
	Connect(ctx context.Context) error
	Close() error
}

// Backend is a Store with an explicit lifecycle.
type Backend interface {
	Store
	Conn
}

// DeletePattern removes every key matching pattern and reports how many
// keys were targeted.
func DeletePattern(ctx context.Context, s Store, pattern string) (int, error) {
	keys, err := s.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.DeleteMany(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}
