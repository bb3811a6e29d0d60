// Command psm serves the prompt structure manager: the /psm file API used by
// the web UI extension and the /api/v1 tree API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/PromptStruct/internal/adapter/fswatch"
	cfhttp "github.com/Strob0t/PromptStruct/internal/adapter/http"
	cfnats "github.com/Strob0t/PromptStruct/internal/adapter/nats"
	cfotel "github.com/Strob0t/PromptStruct/internal/adapter/otel"
	"github.com/Strob0t/PromptStruct/internal/adapter/ws"
	"github.com/Strob0t/PromptStruct/internal/config"
	"github.com/Strob0t/PromptStruct/internal/logger"
	"github.com/Strob0t/PromptStruct/internal/middleware"
	"github.com/Strob0t/PromptStruct/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"store_backend", cfg.Store.Backend,
		"cache", cfg.Cache.Enabled,
		"nats", cfg.NATS.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	// OpenTelemetry
	if cfg.OTel.Enabled {
		shutdown, err := cfotel.Init(ctx, cfg.OTel.Service)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("otel shutdown failed", "error", err)
			}
		}()
	}
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// NATS (optional)
	var queue *cfnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
	}

	// --- Stores ---

	stores, err := buildStores(ctx, cfg, queue, metrics)
	if err != nil {
		return err
	}
	defer stores.close()

	// --- Services ---

	hub := ws.NewHub(originPatterns(cfg.Server.CORSOrigin)...)
	tree := service.NewTreeStore(stores.files)
	tree.SetBroadcaster(hub)
	tree.SetMetrics(metrics)
	if queue != nil {
		tree.SetApplier(cfnats.NewApplier(queue, cfg.NATS.Subject))
	} else {
		tree.SetApplier(logApplier{})
	}

	var watcher *fswatch.Watcher
	if cfg.Watch.Enabled && stores.local != nil {
		watcher, err = fswatch.New(stores.local.Dir(), cfg.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		defer func() { _ = watcher.Close() }()
		if stores.cached != nil {
			watcher.SetInvalidator(stores.cached)
		}
		watcher.SetBroadcaster(hub)
	}

	tree.SetConfigHook(func(saveDir string, devMode bool) {
		logger.SetDebug(devMode)
		if watcher != nil {
			if err := watcher.SetDir(saveDir); err != nil {
				slog.Error("watch new save dir failed", "dir", saveDir, "error", err)
			}
		}
	})
	if fc, err := tree.Config(ctx); err != nil {
		slog.Warn("read stored config failed", "error", err)
	} else {
		logger.SetDebug(fc.DevMode)
		slog.Info("save dir", "dir", fc.SaveDir, "configured", fc.IsConfigured, "dev_mode", fc.DevMode)
	}

	// --- HTTP ---

	handlers := &cfhttp.Handlers{
		Tree:  tree,
		Files: stores.files,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	if cfg.OTel.Enabled {
		r.Use(cfotel.HTTPMiddleware(cfg.OTel.Service))
	}

	// Health endpoint with service status
	r.Get("/health", healthHandler(cfg, queue, hub))

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWS)

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		cfhttp.MountRoutes(r, handlers)
	})

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(cfg *config.Config, queue *cfnats.Queue, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status       string `json:"status"`
		Store        string `json:"store"`
		NATS         string `json:"nats"`
		Connections  int    `json:"ws_connections"`
		CacheEnabled bool   `json:"cache"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:       "ok",
			Store:        cfg.Store.Backend,
			NATS:         "disabled",
			Connections:  hub.ConnectionCount(),
			CacheEnabled: cfg.Cache.Enabled,
		}
		code := http.StatusOK
		if queue != nil {
			status.NATS = "connected"
			if !queue.IsConnected() {
				status.NATS = "disconnected"
				status.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
