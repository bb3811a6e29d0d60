// Package natskv keeps encoded prompt documents in a NATS JetStream
// key-value bucket, the L2 tier shared by every server on the same save
// directory.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/PromptStruct/internal/port/cache"
)

// Ensure Cache implements cache.Cache at compile time.
var _ cache.Cache = (*Cache)(nil)

// maxValueSize caps a cached document. Larger documents are read from the
// file store every time.
const maxValueSize = 1 << 20

// Cache stores documents in a KV bucket. Expiry is the bucket's TTL.
type Cache struct {
	kv jetstream.KeyValue
}

// New creates a cache on an existing bucket.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// Open creates or updates the bucket and returns a cache on it. Entries
// expire after ttl; zero keeps them until deleted.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*Cache, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:       bucket,
		Description:  "PromptStruct prompt document cache",
		TTL:          ttl,
		History:      1,
		MaxValueSize: maxValueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open kv bucket %s: %w", bucket, err)
	}
	return New(kv), nil
}

func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), true, nil
}

// Set stores value. The ttl argument is ignored in favour of the bucket TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if len(value) > maxValueSize {
		slog.DebugContext(ctx, "prompt document too large for kv cache", "bytes", len(value))
		return c.Delete(ctx, key)
	}
	if _, err := c.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Delete purges key so no delete marker history is left behind.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Purge(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("kv purge %s: %w", key, err)
	}
	return nil
}
