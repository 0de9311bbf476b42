package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/scribe/cache"
)

// Store implements cache.Store on top of a go-redis client.
type Store struct {
	opts   Options
	client goredis.UniversalClient
}

var _ cache.Backend = (*Store)(nil)

// NewStore builds a Redis-backed cache store. No connection is made until
// the first command or an explicit Connect.
func NewStore(opts Options) (*Store, error) {
	cfg := opts.withDefaults()
	ro, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{opts: cfg, client: goredis.NewClient(ro)}, nil
}

// NewStoreWithClient wraps an existing client, e.g. a cluster or sentinel
// client configured elsewhere.
func NewStoreWithClient(client goredis.UniversalClient, opts Options) *Store {
	return &Store{opts: opts.withDefaults(), client: client}
}

func clientOptions(o Options) (*goredis.Options, error) {
	if o.URL != "" {
		ro, err := goredis.ParseURL(o.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		if o.TLS != nil {
			ro.TLSConfig = o.TLS
		}
		ro.DialTimeout = o.DialTimeout
		ro.ReadTimeout = o.ReadTimeout
		ro.WriteTimeout = o.WriteTimeout
		ro.PoolSize = o.PoolSize
		return ro, nil
	}
	return &goredis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		TLSConfig:    o.TLS,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
	}, nil
}

// Connect pings the server so startup fails fast on a bad address.
func (s *Store) Connect(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return translate(s.client.Set(ctx, key, value, ttl).Err())
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return translate(s.client.Del(ctx, key).Err())
}

// DeleteMany removes keys in DEL batches sent over a single pipeline.
func (s *Store) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for start := 0; start < len(keys); start += s.opts.DeleteBatch {
			end := min(start+s.opts.DeleteBatch, len(keys))
			pipe.Del(ctx, keys[start:end]...)
		}
		return nil
	})
	return translate(err)
}

// Keys walks the keyspace with SCAN rather than KEYS so large databases
// are not blocked while enumerating.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, s.opts.ScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, translate(err)
	}
	return dedupe(keys), nil
}

// SCAN may return a key more than once.
func dedupe(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, goredis.ErrClosed) {
		return cache.ErrClosed
	}
	return fmt.Errorf("redis: %w", err)
}
