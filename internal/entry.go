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

	"github.com/starford/algiz/internal/api"
	"github.com/starford/algiz/internal/archiver"
	"github.com/starford/algiz/internal/ledger"
	"github.com/starford/algiz/internal/models"
	"github.com/starford/algiz/internal/notify"
	"github.com/starford/algiz/internal/sse"
	"github.com/starford/algiz/internal/storage"
	"github.com/starford/algiz/internal/watcher"
	"github.com/starford/algiz/internal/wayback"
)

// watchDebounce is how long a changed document must stay quiet before the
// watcher archives it. Editors save in bursts; archiving mid-burst wastes
// capture requests.
const watchDebounce = 2 * time.Second

// sseNotifier forwards archival run events to the SSE broker.
type sseNotifier struct {
	broker *sse.Broker
}

func (n sseNotifier) RunStarted(runID, scope string) {
	n.broker.Publish(sse.Event{Type: "run.started", Data: map[string]string{
		"runId": runID,
		"scope": scope,
	}})
}

func (n sseNotifier) Link(kind, path, url, detail string) {
	n.broker.PublishLinkEvent(kind, path, url)
}

func (n sseNotifier) RunCompleted(summary models.RunSummary) {
	n.broker.Publish(sse.Event{Type: "run.completed", Data: summary})
}

var _ notify.Notifier = sseNotifier{}

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
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize failure ledger.
	rec, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer rec.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build archival pipeline.
	profile := cfg.Profile()
	client := wayback.New(cfg.Wayback.ClientOptions(profile, logger))
	arch := archiver.New(store, client, rec, profile, logger, sseNotifier{broker: broker})

	apiRouter := api.NewRouter(arch, rec, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Wayback.RequireCredentials)

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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher: changed documents are archived after a debounce.
	g.Go(func() error {
		if err := watcher.Watch(gCtx, arch, store, cfg.Vault.Path, watchDebounce, logger); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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
