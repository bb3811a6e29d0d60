// Package cache defines the byte cache that holds encoded prompt documents
// in front of a file store.
package cache

import (
	"context"
	"time"
)

// Cache stores encoded documents by key. A miss is (nil, false, nil).
// Errors are advisory: callers fall back to the file store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value. A zero ttl keeps it until evicted or deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
