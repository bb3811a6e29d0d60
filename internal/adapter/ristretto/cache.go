// Package ristretto keeps encoded prompt documents in an in-process
// dgraph-io/ristretto cache, the L1 tier of the prompt cache.
package ristretto

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/PromptStruct/internal/port/cache"
)

// Ensure Cache implements cache.Cache at compile time.
var _ cache.Cache = (*Cache)(nil)

// typicalDocumentSize sizes the admission counters. A prompt file with a
// few dozen nodes encodes to a couple of kilobytes.
const typicalDocumentSize = 2 << 10

// Cache is a size-bounded document cache. Each entry costs its encoded
// length in bytes.
type Cache struct {
	c        *ristretto.Cache[string, []byte]
	maxEntry int64
}

// New creates a cache holding up to maxCostBytes of documents. A single
// document may take at most a quarter of that.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(10*maxCostBytes/typicalDocumentSize, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, maxEntry: maxCostBytes / 4}, nil
}

func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value. Oversized documents are skipped and served by the file
// store. The write is visible to Get when Set returns.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(value))
	if cost > c.maxEntry {
		slog.Debug("prompt document too large for l1 cache", "bytes", cost, "limit", c.maxEntry)
		c.c.Del(key)
		return nil
	}
	c.c.SetWithTTL(key, value, cost, ttl)
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
