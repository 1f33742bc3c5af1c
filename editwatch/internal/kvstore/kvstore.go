// Package kvstore implements the persistent keyed store the watcher
// writes its logs and candidate artifact into. Each caller owns a disjoint
// set of keys; the store never groups writes across keys.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned when a write would exceed the store's capacity.
	ErrQuotaExceeded = errors.New("kvstore: quota exceeded")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kvstore: store closed")
)

// Store is a key → JSON document mapping with synchronous get/set.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
