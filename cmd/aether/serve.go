package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/varun-un/AetherConnect/internal/api"
	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/cache"
	"github.com/varun-un/AetherConnect/internal/catalog"
	"github.com/varun-un/AetherConnect/internal/config"
	"github.com/varun-un/AetherConnect/internal/health"
	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/narration"
	"github.com/varun-un/AetherConnect/internal/propagation"
	"github.com/varun-un/AetherConnect/internal/session"
	"github.com/varun-un/AetherConnect/internal/stream"
	"github.com/varun-un/AetherConnect/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	logger := cfg.Log.Logger(os.Stdout)

	if cfg.Narration.AudioPath != "" {
		d, err := narration.ProbeDuration(cfg.Narration.AudioPath)
		if err != nil {
			return err
		}
		cfg.Session.NarrationDuration = d
		logger.Info("narration probed", "path", cfg.Narration.AudioPath, "duration_seconds", d.Seconds())
	}

	store := bodies.NewStore()
	if err := store.Set(cfg.Dataset()); err != nil {
		return fmt.Errorf("body dataset: %w", err)
	}
	metrics.SetBodyDatasetCount(len(store.Get().Bodies))
	logger.Info("body dataset loaded", "source", store.Get().Source, "count", len(store.Get().Bodies))

	// Only the body dataset is reloaded live; everything else needs a restart.
	loader.Watch(func(next config.Config, err error) {
		if err != nil {
			logger.Warn("config reload rejected", "error", err)
			return
		}
		if err := store.Set(next.Dataset()); err != nil {
			logger.Warn("body dataset reload rejected", "error", err)
			return
		}
		logger.Info("body dataset reloaded", "source", store.Get().Source, "count", len(store.Get().Bodies))
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prop := propagation.NewPropagator(store, cfg.Propagation, logger)
	paths := cache.NewPathCache(cfg.Cache, prop, store, logger)

	cat, err := catalog.Open(ctx, cfg.Catalog, logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	sessions := session.NewManager(cfg.Session, paths, store, logger)
	streamHandler := stream.NewHandler(sessions, cfg.Stream, logger)

	srv := api.NewServer(api.Config{
		Addr:          cfg.Server.Addr,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		MaxPathPoints: cfg.Server.MaxPathPoints,
	}, api.Deps{
		Auth:     cfg.Auth,
		Bodies:   store,
		Paths:    paths,
		Sessions: sessions,
		Catalog:  cat,
		Stream:   streamHandler,
		Ready: map[string]health.Check{
			"catalog": cat.Ping,
			"bodies": func(context.Context) error {
				if store.Get() == nil {
					return errors.New("no body dataset loaded")
				}
				return nil
			},
		},
		Web: web.Content,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		paths.Start(gctx)
		return nil
	})
	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("starting server",
			"addr", cfg.Server.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"catalog_driver", cfg.Catalog.Driver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Ending the sessions closes their streams so Shutdown is not held open.
		sessions.StopAll()
		if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		return nil
	})

	err = g.Wait()
	if err == nil {
		logger.Info("server stopped")
	}
	return err
}
