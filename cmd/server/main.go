package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/localink/localink/internal/clock"
	"github.com/localink/localink/internal/config"
	"github.com/localink/localink/internal/model"
	"github.com/localink/localink/internal/observability"
	"github.com/localink/localink/internal/server"
	"github.com/localink/localink/internal/service"
	"github.com/localink/localink/internal/shortcode"
	"github.com/localink/localink/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	logger.Info("store ready", slog.String("backend", cfg.Store.Backend))

	// Wire the engine (dependency injection)
	clk := clock.System{}
	activity := service.NewActivityLog(st, clk, logger, cfg.App.LogMaxEntries)
	activity.Subscribe(func(e model.LogEntry) {
		logger.Debug("activity", slog.String("action", e.Action), slog.String("level", e.Level))
	})
	codes := shortcode.NewGenerator(cfg.App.ShortCodeLen, cfg.App.ShortCodeRetries)
	urls := service.NewURLManager(st, codes, clk, activity, logger)
	analytics := service.NewAnalytics(st, clk, activity, logger)

	router := server.NewRouter(cfg, urls, analytics, activity, st, clk, logger)
	srv := server.NewServer(cfg, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("base_url", cfg.App.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Opportunistic background purge of expired records. Resolve stays
	// lazy regardless; this only keeps the stored collection small.
	g.Go(func() error {
		if cfg.App.PurgeInterval <= 0 {
			return nil
		}
		ticker := time.NewTicker(cfg.App.PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if removed, err := urls.PurgeExpired(ctx); err != nil {
					logger.Error("purge sweep failed", slog.String("error", err.Error()))
				} else if removed > 0 {
					logger.Info("purge sweep removed expired records", slog.Int("removed", removed))
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
	logger.Info("server exited gracefully")
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendRedis:
		return store.NewRedis(ctx, cfg.Store.RedisConnectionString())
	default:
		return store.NewFile(cfg.Store.DataDir)
	}
}
