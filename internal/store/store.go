// Package store provides the key-value persistence layer. Each key holds
// one JSON-serialized collection; callers own serialization.
package store

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrUnavailable = errors.New("store unavailable")
	ErrFull        = errors.New("store full")
)

// Store is a string-keyed persistent byte store.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the value for key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Ping checks backend connectivity for health reporting.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
