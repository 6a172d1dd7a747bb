package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"icongen/internal/backend"
	"icongen/internal/backend/replicate"
	"icongen/internal/http/handlers"
	httpapi "icongen/internal/http/httpapi"
	"icongen/internal/infra"
	"icongen/internal/job"
	"icongen/internal/postproc"
	"icongen/internal/storage"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	backendID, err := backend.ParseID(cfg.Backend)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Backend).Msg("invalid backend")
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage")
	}

	var remote *replicate.Client
	if cfg.ReplicateAPIToken != "" {
		remote, err = replicate.NewClient(replicate.Options{
			APIToken:       cfg.ReplicateAPIToken,
			BaseURL:        cfg.ReplicateBaseURL,
			Logger:         &logger,
			RequestTimeout: cfg.BackendCallTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build replicate client")
		}
	} else if backendID != backend.Synthetic {
		logger.Warn().Str("backend", string(backendID)).
			Msg("no REPLICATE_API_TOKEN set; generation requests will fail")
	}

	var remover postproc.BackgroundRemover
	if cfg.RembgURL != "" {
		rembg, err := postproc.NewRembgClient(cfg.RembgURL, &http.Client{Timeout: cfg.BackendCallTimeout})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build rembg client")
		}
		remover = rembg
	}

	proc, err := postproc.New(postproc.Options{
		Remover:      remover,
		FontPath:     cfg.FontPath,
		BoldFontPath: cfg.BoldFontPath,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build post-processor")
	}

	store := job.NewStore()
	orch := job.NewOrchestrator(store, backend.NewExecutor(remote), proc, files, logger, job.Options{
		Backend:       backendID,
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		CallTimeout:   cfg.BackendCallTimeout,
		Retention:     cfg.JobRetention,
		SweepInterval: cfg.SweepInterval,
	})
	orch.Start()

	app := handlers.NewApp(cfg, logger, orch, files)
	router := httpapi.NewRouter(app, files.BasePath())
	server := infra.NewHTTPServer(cfg, router, orch)

	go func() {
		logger.Info().Str("backend", string(backendID)).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
