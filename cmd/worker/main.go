package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cliohq/statement-worker/internal/api"
	"github.com/cliohq/statement-worker/internal/config"
	"github.com/cliohq/statement-worker/internal/extractor"
	"github.com/cliohq/statement-worker/internal/parser"
	"github.com/cliohq/statement-worker/internal/pipeline"
	"github.com/cliohq/statement-worker/internal/repository"
	"github.com/cliohq/statement-worker/internal/storage"
	"github.com/cliohq/statement-worker/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to config file (optional)")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config_load_failed")
	}
	if cfg.Environment == "development" {
		log = log.Level(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("database_connect_failed")
	}
	defer pool.Close()

	store, err := storage.NewMinioStore(ctx, cfg.MinioConfig(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("storage_connect_failed")
	}

	artifacts := repository.NewPgArtifactRepository(pool)
	bills := repository.NewPgBillRepository(pool)

	// Services are constructed once here and passed in explicitly; nothing
	// in the pipeline reaches for globals.
	ex := extractor.NewService(cfg.OCR.Language, cfg.OCR.DPI, log)
	selector := parser.NewSelector(nil)
	pipe := pipeline.New(store, artifacts, bills, ex, selector,
		cfg.Processing.ConfidenceThreshold, nil, log)

	queue := worker.NewQueue(cfg.Processing.QueueSize)
	workers := worker.NewPool(worker.PoolConfig{
		Concurrency: cfg.Processing.Concurrency,
		MaxRetries:  cfg.Processing.MaxRetries,
		Backoff:     cfg.Processing.RetryBackoff,
		SoftLimit:   cfg.Processing.SoftTimeLimit,
		HardLimit:   cfg.Processing.HardTimeLimit,
	}, queue, pipe, log)

	sweeper := worker.NewSweeper(worker.SweeperConfig{
		Interval:   cfg.Retention.SweepInterval,
		StuckAfter: cfg.Retention.StuckAfter,
	}, artifacts, store, nil, log)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler := &api.Handler{Artifacts: artifacts, Queue: queue}
	handler.Register(app)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return workers.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return app.Listen(cfg.Server.Addr) })
	g.Go(func() error {
		<-gctx.Done()
		queue.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	log.Info().Str("addr", cfg.Server.Addr).
		Int("concurrency", cfg.Processing.Concurrency).
		Msg("worker_started")

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("worker_stopped")
		os.Exit(1)
	}
	log.Info().Msg("worker_shutdown_complete")
}
