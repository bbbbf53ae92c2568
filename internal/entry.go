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

	"github.com/glintapp/glint/internal/api"
	"github.com/glintapp/glint/internal/itemservice"
	"github.com/glintapp/glint/internal/mcpserver"
	"github.com/glintapp/glint/internal/sse"
	"github.com/glintapp/glint/internal/storagepath"
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

	// Structured JSON logger. In MCP mode stdout carries the protocol,
	// so logs go to stderr.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	// Resolve the storage root: config override wins, otherwise the
	// user settings file decides.
	resolver, err := storagepath.NewResolver()
	if err != nil {
		return fmt.Errorf("init settings resolver: %w", err)
	}

	root := cfg.Storage.Path
	if root == "" {
		root, err = resolver.ResolveRoot()
		if err != nil {
			return fmt.Errorf("resolve storage root: %w", err)
		}
	} else {
		root, err = storagepath.ValidatePath(root)
		if err != nil {
			return fmt.Errorf("validate storage root: %w", err)
		}
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_root", root),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := itemservice.Open(root, logger)
	if err != nil {
		return fmt.Errorf("open item store: %w", err)
	}
	engine := itemservice.NewEngine(svc, logger)
	defer engine.Close()

	if app.mcp {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(engine).ServeStdio()
	}

	// SSE broker. Item events are published by the file watcher, so
	// changes made by any writer reach subscribers.
	broker := sse.NewBroker()
	defer broker.Close()

	apiRouter := api.NewRouter(engine, resolver, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	// File watcher keeps the index fresh and feeds the SSE broker.
	engine.StartWatcher(gCtx, func(kind string, id int64) {
		broker.PublishItemEvent(kind, id)
	})

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
