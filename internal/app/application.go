// Package app wires all components together with an explicit lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tanktalk/internal/api"
	"tanktalk/internal/archive"
	"tanktalk/internal/auth"
	"tanktalk/internal/config"
	"tanktalk/internal/hub"
	"tanktalk/internal/queue"
	"tanktalk/internal/registry"
	"tanktalk/internal/rooms"
	"tanktalk/internal/session"
	"tanktalk/internal/ws"
)

// Application owns every component. All mutable chat state lives in the
// component fields constructed here, never in package-level globals, and
// is only mutated through the hub's event goroutine.
type Application struct {
	config     *config.Config
	archive    *archive.Store
	eventHub   *hub.Hub
	httpServer *http.Server
}

// NewApplication constructs components in dependency order:
// archive -> auth -> state components -> hub -> handlers -> HTTP server.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	archiveStore, err := archive.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	authService := auth.NewService(archiveStore, cfg.Advice.TokenTTL)

	eventHub := hub.New(
		registry.New(),
		rooms.New(),
		queue.New(),
		session.NewStore(),
		hub.Options{
			Archive:          archiveStore,
			SessionRetention: cfg.Advice.SessionRetention,
			SweepInterval:    cfg.Advice.SweepInterval,
		},
	)

	apiServer := api.NewServer(authService, eventHub, archiveStore)
	wsHandler := ws.NewHandler(eventHub, cfg.WebSocket)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		archive:    archiveStore,
		eventHub:   eventHub,
		httpServer: httpServer,
	}, nil
}

// Start launches the hub and then the HTTP server.
func (app *Application) Start(ctx context.Context) error {
	slog.Info("starting tanktalk", "addr", app.httpServer.Addr)

	if err := app.eventHub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		_ = app.eventHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		slog.Info("tanktalk started")
		return nil
	case <-ctx.Done():
		_ = app.eventHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP, hub, archive.
func (app *Application) Stop(ctx context.Context) error {
	slog.Info("shutting down tanktalk")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if err := app.eventHub.Stop(); err != nil && err != hub.ErrHubNotRunning {
		slog.Error("hub shutdown error", "error", err)
	}
	if err := app.archive.Close(); err != nil {
		slog.Error("archive shutdown error", "error", err)
	}

	slog.Info("tanktalk shutdown complete")
	return nil
}

// Addr returns the server address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
