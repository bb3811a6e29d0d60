// Package cachedstore wraps a file store with a read-through prompt cache.
package cachedstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/PromptStruct/internal/adapter/otel"
	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
	"github.com/Strob0t/PromptStruct/internal/port/cache"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
)

// Ensure Store implements filestore.Store at compile time.
var _ filestore.Store = (*Store)(nil)

// keySpace scopes cache keys so entries of different save directories
// never collide, also in a shared L2 bucket.
var keySpace = uuid.MustParse("6f1c2a43-5d0e-4b8a-9a57-3c2f7e1d9b40")

// Store caches decoded prompt documents in front of another file store.
// Cache failures are logged and fall through to the inner store.
type Store struct {
	inner filestore.Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group

	metrics *cfotel.Metrics

	mu  sync.Mutex
	dir string // save directory the keys are scoped to; "" until loaded
}

// New creates a cached store.
func New(inner filestore.Store, c cache.Cache, ttl time.Duration) *Store {
	return &Store{inner: inner, cache: c, ttl: ttl}
}

// SetMetrics sets the optional metric instruments.
func (s *Store) SetMetrics(m *cfotel.Metrics) {
	s.metrics = m
}

func (s *Store) ListFiles(ctx context.Context) ([]string, error) {
	return s.inner.ListFiles(ctx)
}

// GetPrompts returns the cached document or loads it once, even when
// several callers miss at the same time.
func (s *Store) GetPrompts(ctx context.Context, file string) (prompttree.Forest, error) {
	key := s.key(ctx, file)

	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		slog.Warn("prompt cache get failed", "file", file, "error", err)
	} else if ok {
		var f prompttree.Forest
		if err := json.Unmarshal(data, &f); err == nil {
			s.count(ctx, true)
			return f, nil
		}
		slog.Warn("dropping undecodable cache entry", "file", file)
	}
	s.count(ctx, false)

	v, err, _ := s.group.Do(key, func() (any, error) {
		f, err := s.inner.GetPrompts(ctx, file)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, f)
		return f, nil
	})
	if err != nil {
		return prompttree.Forest{}, err
	}
	f := v.(prompttree.Forest)
	// Callers that shared the flight must not share the nodes.
	return f.Copy(), nil
}

// SavePrompts writes through to the inner store and refreshes the entry.
func (s *Store) SavePrompts(ctx context.Context, file string, prompts prompttree.Forest) error {
	key := s.key(ctx, file)
	if err := s.inner.SavePrompts(ctx, file, prompts); err != nil {
		s.drop(ctx, key)
		return err
	}
	s.store(ctx, key, prompts)
	return nil
}

func (s *Store) DuplicateFile(ctx context.Context, src, dst string) error {
	s.drop(ctx, s.key(ctx, filestore.WithExt(dst)))
	return s.inner.DuplicateFile(ctx, src, dst)
}

func (s *Store) RenameFile(ctx context.Context, src, dst string) error {
	s.drop(ctx, s.key(ctx, src))
	s.drop(ctx, s.key(ctx, filestore.WithExt(dst)))
	return s.inner.RenameFile(ctx, src, dst)
}

func (s *Store) DeleteFile(ctx context.Context, file string) error {
	s.drop(ctx, s.key(ctx, file))
	return s.inner.DeleteFile(ctx, file)
}

func (s *Store) GetConfig(ctx context.Context) (filestore.Config, error) {
	return s.inner.GetConfig(ctx)
}

// SetConfig updates the inner store and rescopes the cache keys to the new
// save directory.
func (s *Store) SetConfig(ctx context.Context, saveDir string, devMode bool) error {
	if err := s.inner.SetConfig(ctx, saveDir, devMode); err != nil {
		return err
	}
	s.mu.Lock()
	s.dir = ""
	s.mu.Unlock()
	return nil
}

// Invalidate drops the cached document of file, e.g. after it changed on
// disk behind the store's back.
func (s *Store) Invalidate(ctx context.Context, file string) {
	s.drop(ctx, s.key(ctx, file))
}

func (s *Store) key(ctx context.Context, file string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		cfg, err := s.inner.GetConfig(ctx)
		if err != nil {
			slog.Warn("prompt cache: save dir unknown", "error", err)
		} else {
			s.dir = cfg.SaveDir
		}
	}
	return "psm.prompts." + uuid.NewSHA1(keySpace, []byte(s.dir+"\x00"+file)).String()
}

func (s *Store) store(ctx context.Context, key string, f prompttree.Forest) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Warn("prompt cache encode failed", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		slog.Warn("prompt cache set failed", "error", err)
	}
}

func (s *Store) drop(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		slog.Warn("prompt cache delete failed", "error", err)
	}
}

func (s *Store) count(ctx context.Context, hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.Add(ctx, 1)
	} else {
		s.metrics.CacheMisses.Add(ctx, 1)
	}
}
