// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/wunjo/internal/api"
	"github.com/starford/wunjo/internal/backend"
	"github.com/starford/wunjo/internal/cache"
	"github.com/starford/wunjo/internal/importer"
	"github.com/starford/wunjo/internal/metrics"
	"github.com/starford/wunjo/internal/optimistic"
	"github.com/starford/wunjo/internal/persist"
	"github.com/starford/wunjo/internal/sse"
	"github.com/starford/wunjo/internal/wellness"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.Store.SQLitePath),
		slog.Duration("backend_latency", cfg.Backend.Latency),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Snapshot database.
	db, err := persist.Open(cfg.Store.SQLitePath)
	if err != nil {
		return fmt.Errorf("open snapshot db: %w", err)
	}
	defer db.Close()

	// Prometheus instrumentation.
	ms := metrics.New()

	// Simulated sync backend and the optimistic engine over it.
	be := backend.NewSimulated(cfg.Backend.Latency)
	engine := optimistic.New(be,
		optimistic.WithLogger(logger),
		optimistic.WithMetrics(ms),
	)

	// Derived-view cache with background sweep.
	viewCache := cache.New(cfg.Cache.MaxEntries, cfg.Cache.SweepInterval,
		cache.WithMetrics(ms))
	defer viewCache.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Wellness service on top of everything.
	svc := wellness.New(engine,
		wellness.WithPersistence(db),
		wellness.WithCache(viewCache),
		wellness.WithSummaryTTL(cfg.Cache.TTL),
		wellness.WithBroker(broker),
		wellness.WithLogger(logger),
	)
	svc.Hydrate()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus scrape endpoint (unauthenticated).
	r.Method(http.MethodGet, "/metrics", ms.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start import inbox watcher when configured.
	if cfg.Import.Inbox != "" {
		if err := os.MkdirAll(cfg.Import.Inbox, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		imp := importer.New(cfg.Import.Inbox, svc, db, logger)
		if err := imp.Sync(gCtx); err != nil {
			logger.Warn("initial import sync failed", slog.String("error", err.Error()))
		}
		g.Go(func() error {
			return imp.Watch(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
