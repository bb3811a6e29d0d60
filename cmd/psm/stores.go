package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Strob0t/PromptStruct/internal/adapter/cachedstore"
	cfnats "github.com/Strob0t/PromptStruct/internal/adapter/nats"
	"github.com/Strob0t/PromptStruct/internal/adapter/natskv"
	cfotel "github.com/Strob0t/PromptStruct/internal/adapter/otel"
	"github.com/Strob0t/PromptStruct/internal/adapter/psmclient"
	"github.com/Strob0t/PromptStruct/internal/adapter/ristretto"
	"github.com/Strob0t/PromptStruct/internal/adapter/tiered"
	"github.com/Strob0t/PromptStruct/internal/adapter/yamlfs"
	"github.com/Strob0t/PromptStruct/internal/config"
	"github.com/Strob0t/PromptStruct/internal/port/cache"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
	"github.com/Strob0t/PromptStruct/internal/port/generation"
	"github.com/Strob0t/PromptStruct/internal/resilience"
)

// storeStack is the assembled file store with handles to its layers.
type storeStack struct {
	files  filestore.Store
	local  *yamlfs.Store      // nil for the remote backend
	cached *cachedstore.Store // nil when caching is disabled
	l1     *ristretto.Cache
}

func (s *storeStack) close() {
	if s.l1 != nil {
		s.l1.Close()
	}
}

// buildStores selects the file store backend and puts the prompt cache in
// front of it. The NATS KV bucket becomes the second cache tier when a
// queue is connected.
func buildStores(ctx context.Context, cfg *config.Config, queue *cfnats.Queue, metrics *cfotel.Metrics) (*storeStack, error) {
	st := &storeStack{}

	switch cfg.Store.Backend {
	case config.BackendRemote:
		client := psmclient.NewClient(strings.TrimRight(cfg.Store.RemoteURL, "/"), cfg.Store.Timeout)
		client.SetBreaker(resilience.NewBreaker(
			cfg.Breaker.MaxFailures,
			cfg.Breaker.Timeout,
			resilience.WithIgnore(psmclient.IsCallerError),
			resilience.WithStateChange(func(from, to string) {
				slog.Warn("remote prompt store circuit changed", "from", from, "to", to)
			}),
		))
		st.files = client
		slog.Info("using remote prompt store", "url", cfg.Store.RemoteURL)
	default:
		st.local = yamlfs.New(cfg.Store.ConfigFile, cfg.Store.DataDir)
		st.files = st.local
		slog.Info("using local prompt store", "dir", st.local.Dir(), "config", cfg.Store.ConfigFile)
	}

	if !cfg.Cache.Enabled {
		return st, nil
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("cache l1: %w", err)
	}
	st.l1 = l1

	var c cache.Cache = l1
	if queue != nil && cfg.Cache.L2Bucket != "" {
		l2, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.TTL)
		if err != nil {
			l1.Close()
			return nil, fmt.Errorf("cache l2: %w", err)
		}
		c = tiered.New(l1, l2, cfg.Cache.TTL)
		slog.Info("prompt cache tiered", "bucket", cfg.Cache.L2Bucket)
	}

	st.cached = cachedstore.New(st.files, c, cfg.Cache.TTL)
	st.cached.SetMetrics(metrics)
	st.files = st.cached
	return st, nil
}

// originPatterns turns the CORS origin list into host patterns for the
// websocket origin check.
func originPatterns(origins string) []string {
	var patterns []string
	for o := range strings.SplitSeq(origins, ",") {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}

// logApplier hands compiled prompts to the log when no generation backend
// is connected.
type logApplier struct{}

func (logApplier) Apply(ctx context.Context, p generation.Prompt) error {
	slog.InfoContext(ctx, "prompts applied", "file", p.File, "positive", p.Positive, "negative", p.Negative)
	return nil
}
