package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"planner/internal/adapter/repo"
	"planner/internal/animation"
	"planner/internal/infra"
	"planner/internal/infra/credentials"
	"planner/internal/providers/veo"
	"planner/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.DBApplicationName += "-worker"
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	apiKey, err := credentials.NewStore(runner).ResolveVeoAPIKey(ctx, cfg.GoogleAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to resolve google api key")
	}
	veoClient, err := veo.NewClient(veo.Options{
		APIKey:         apiKey,
		BaseURL:        cfg.VeoBaseURL,
		Model:          cfg.VeoModel,
		HTTPClient:     &http.Client{Timeout: cfg.VeoHTTPTimeout},
		DownloadClient: &http.Client{Timeout: cfg.VeoDownloadTimeout},
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure veo client")
	}

	blobs, _, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	steps := repo.NewStepRepository(runner)
	orchestrator, err := animation.New(animation.Options{
		Steps:  steps,
		Client: veoClient,
		Blobs:  blobs,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure orchestrator")
	}

	reconciler := animation.NewReconciler(animation.ReconcilerOptions{
		Steps:      steps,
		Poller:     orchestrator,
		Interval:   cfg.WorkerInterval,
		StaleAfter: cfg.WorkerStaleAfter,
		Batch:      cfg.WorkerBatch,
		Logger:     logger,
	})
	if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
