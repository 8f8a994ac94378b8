// Attention server - runs the camera attention engine and its HTTP/WebSocket API
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/attention-guard/internal/camera"
	"github.com/GriffinCanCode/attention-guard/internal/config"
	"github.com/GriffinCanCode/attention-guard/internal/estimator"
	"github.com/GriffinCanCode/attention-guard/internal/metrics"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator"
	"github.com/GriffinCanCode/attention-guard/internal/preview"
	"github.com/GriffinCanCode/attention-guard/internal/resilience"
	"github.com/GriffinCanCode/attention-guard/internal/server"
	"github.com/GriffinCanCode/attention-guard/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Production {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return err
	}

	store := openStore(ctx, cfg)
	defer func() { _ = store.Close() }()

	batcher := storage.NewBatcher(store, resilience.New(resilience.StorageConfig()).WithHook(observeBreaker), 0, 0)
	defer batcher.Stop()

	var engine *orchestrator.Engine
	engine = orchestrator.New(orchestrator.Deps{
		Camera: camera.DeviceOpener{},
		Estimator: estimator.GRPCOpener{
			Addr:    cfg.EstimatorAddr,
			Timeout: cfg.EstimatorTimeout,
			Confidence: func() (float64, float64) {
				a := engine.Settings().Attention
				return a.MinDetectionConfidence, a.MinTrackingConfidence
			},
			Breaker: resilience.New(resilience.EstimatorConfig()).WithHook(observeBreaker),
		},
		Annotator:   preview.New(),
		Recorder:    batcher,
		SkipSimilar: cfg.SkipSimilarFrames,
	}, settings)

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Close()

	srv := server.New(engine, store, server.Options{
		SettingsPath:   cfg.SettingsPath,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("attention server starting", "http", cfg.HTTPAddr, "estimator", cfg.EstimatorAddr)
		return srv.Serve(gctx, cfg.HTTPAddr, shutdownTimeout)
	})
	if cfg.WatchSettings {
		g.Go(func() error {
			return config.Watch(gctx, cfg.SettingsPath, func(s config.Settings) {
				if err := engine.UpdateSettings(s); err != nil {
					slog.Warn("settings reload rejected", "error", err)
				}
			})
		})
	}

	err = g.Wait()
	slog.Info("shutting down...")
	return err
}

// openStore prefers Redis and falls back to the in-memory log when it is
// not configured or unreachable.
func openStore(ctx context.Context, cfg *config.Config) storage.Store {
	memory := func() storage.Store {
		return storage.NewMemoryStore(0, 0, cfg.Retention())
	}
	if cfg.RedisAddr == "" {
		slog.Info("using in-memory history", "retention", cfg.Retention())
		return memory()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := storage.NewRedisStore(connectCtx, storage.RedisOptions{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		Retention: cfg.Retention(),
	})
	if err != nil {
		slog.Warn("redis unavailable, using in-memory history", "addr", cfg.RedisAddr, "error", err)
		return memory()
	}
	slog.Info("using redis history", "addr", cfg.RedisAddr)
	return store
}

func observeBreaker(name string, _, to resilience.State) {
	metrics.BreakerState.WithLabelValues(name).Set(float64(to))
}
