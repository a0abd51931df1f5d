// Package redis keeps sealed documents as plain string keys and audit
// streams as lists. Records are only ever RPUSHed, so positive list indexes
// are stable while a scan walks backwards.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/store"
)

const (
	defaultPrefix = "carguard"
	scanPageSize  = 100
)

type Backend struct {
	client *redis.Client
	prefix string
}

var _ store.Backend = (*Backend)(nil)

// New wraps an existing client. Keys are namespaced under prefix
// ("carguard" when empty).
func New(client *redis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Backend{client: client, prefix: prefix}
}

// Open parses url, connects and pings.
func Open(ctx context.Context, url string) (*Backend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client, ""), nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) docKey(key string) string    { return b.prefix + ":doc:" + key }
func (b *Backend) logKey(stream string) string { return b.prefix + ":log:" + stream }

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.docKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Put relies on SET replacing the value atomically.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, b.docKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Append(ctx context.Context, stream string, data []byte) error {
	if err := b.client.RPush(ctx, b.logKey(stream), data).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", stream, err)
	}
	return nil
}

func (b *Backend) Scan(ctx context.Context, stream string, fn func(data []byte) bool) error {
	key := b.logKey(stream)

	n, err := b.client.LLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis llen %s: %w", stream, err)
	}

	for hi := n - 1; hi >= 0; hi -= scanPageSize {
		lo := hi - scanPageSize + 1
		if lo < 0 {
			lo = 0
		}

		page, err := b.client.LRange(ctx, key, lo, hi).Result()
		if err != nil {
			return fmt.Errorf("redis lrange %s: %w", stream, err)
		}
		for i := len(page) - 1; i >= 0; i-- {
			if !fn([]byte(page[i])) {
				return nil
			}
		}
	}
	return nil
}
