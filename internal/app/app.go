// Package app provides the top-level application lifecycle. It wires together
// all dependencies (chain client, decoder, caches, pipeline, stats, WebSocket
// hub, HTTP server) and runs them under one errgroup until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/enswatch/internal/config"
	"github.com/alanyoungcy/enswatch/internal/server"
	"github.com/alanyoungcy/enswatch/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the chain
// subscriptions, pipeline, dispatcher, and HTTP server, and blocks until the
// context is cancelled or a fatal error occurs. On return it runs all
// registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)
	a.logger.DebugContext(ctx, "active configuration",
		slog.Any("config", config.RedactedConfig(a.cfg)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Subscriber.Run(ctx)
	})
	g.Go(func() error {
		return deps.Pipeline.Run(ctx, deps.Subscriber.Logs())
	})
	g.Go(func() error {
		return deps.Hub.Run(ctx)
	})
	g.Go(func() error {
		return a.dispatch(ctx, deps)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// startHTTPServer adds the HTTP server and its graceful-shutdown watcher to
// the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		StaticDir:   a.cfg.Server.StaticDir,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Hub, a.logger),
		Stats:  handler.NewStatsHandler(deps.Stats, a.logger),
		Market: handler.NewMarketHandler(deps.CMC, a.logger),
	}, deps.Hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
