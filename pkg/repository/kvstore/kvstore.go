// Package kvstore is the device-local persistence layer: a small key-value
// store with raw byte values. Usage counters, history lists and the
// subscription cache are all JSON documents under well-known keys, so the
// backend (SQLite, Redis, in-memory) is swappable without touching policy
// code.
package kvstore

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("kvstore: store is closed")

type Store interface {
	// Get returns the raw value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists all keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
