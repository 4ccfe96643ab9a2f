package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"planner/internal/adapter/repo"
	"planner/internal/animation"
	"planner/internal/http/handlers"
	httpapi "planner/internal/http/httpapi"
	"planner/internal/infra"
	"planner/internal/infra/credentials"
	"planner/internal/planning"
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

	if cfg.AutoMigrate {
		if err := infra.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	apiKey, err := credentials.NewStore(runner).ResolveVeoAPIKey(ctx, cfg.GoogleAPIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve google api key")
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
		logger.Fatal().Err(err).Msg("failed to configure veo client")
	}

	blobs, static, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	orchestrator, err := animation.New(animation.Options{
		Steps:      repo.NewStepRepository(runner),
		Client:     veoClient,
		Blobs:      blobs,
		HTTPClient: &http.Client{Timeout: cfg.IllustrationTimeout},
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure animation orchestrator")
	}
	plans := planning.NewService(repo.NewPlanRepository(runner), blobs, orchestrator, logger)

	app := handlers.NewApp(logger, orchestrator, plans)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigin,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Static:          static,
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().Str("model", veoClient.Model()).Str("storage", cfg.StorageDriver).Msgf("API listening on :%s", cfg.Port)
	if err := server.Serve(ctx); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
