package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by BlobStore.Get when the key has never been written.
var ErrNotFound = errors.New("store: not found")

// BlobStore persists opaque documents by key. Put is a full overwrite and
// must be atomic: a reader sees either the old or the new value, never a mix.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// LogStore is an append-only sequence of opaque records per stream.
type LogStore interface {
	Append(ctx context.Context, stream string, data []byte) error

	// Scan visits records newest first until fn returns false or the
	// stream is exhausted.
	Scan(ctx context.Context, stream string, fn func(data []byte) bool) error
}

// Backend is a persistence adapter providing both contracts.
type Backend interface {
	BlobStore
	LogStore
	Close() error
}
