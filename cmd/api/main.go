package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/qbo-converter/internal/api"
	"github.com/dvloznov/qbo-converter/internal/api/handlers"
	"github.com/dvloznov/qbo-converter/internal/config"
	"github.com/dvloznov/qbo-converter/internal/extract"
	"github.com/dvloznov/qbo-converter/internal/ingest"
	"github.com/dvloznov/qbo-converter/internal/logger"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
	"github.com/dvloznov/qbo-converter/internal/storage"
	"github.com/dvloznov/qbo-converter/internal/worker"
)

func main() {
	configPath := flag.String("config", os.Getenv("QBO_CONFIG"), "path to a YAML config file (or set QBO_CONFIG env)")
	flag.Parse()

	bootLog := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log, err := logger.NewFromConfig(cfg.Log, os.Stdout)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to create logger")
	}
	if cfg.ConfigPath != "" {
		log.Info().Str("path", cfg.ConfigPath).Msg("Loaded config file")
	}

	ctx := context.Background()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}
	defer store.Close()

	converter := pipeline.NewConverter(
		extract.NewExtractor(extract.DefaultLayout(), cfg.Dates.AssumedYear),
		ofx.NewEncoder(cfg.Institution),
	)

	serviceOpts := []ingest.Option{ingest.WithMaxBytes(cfg.Upload.MaxBytes)}
	routes := api.Routes{
		Convert: handlers.NewConvertHandler(converter, cfg.Upload.MaxBytes, log),
	}

	// The bundled converter runs in-process when enabled; otherwise an
	// external converter is expected to watch the bucket.
	var bundled *worker.Runtime
	if cfg.Worker.Enabled {
		conv, err := worker.NewConverter(ctx, cfg, store)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create conversion pipeline")
		}
		bundled = worker.NewRuntime(store, conv, cfg.Worker, log)
		if err := bundled.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start converter worker")
		}
		serviceOpts = append(serviceOpts, ingest.WithNotifier(bundled.Worker))
		routes.Jobs = handlers.NewJobsHandler(bundled.Jobs, log)
	}

	svc := ingest.NewService(store, log, serviceOpts...)
	routes.Statements = handlers.NewStatementsHandler(svc, cfg.Upload.MaxBytes, log)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(routes, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("storage", cfg.Storage.Backend).
			Str("bucket", store.Bucket()).
			Bool("worker", cfg.Worker.Enabled).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if bundled != nil {
		if err := bundled.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping converter worker")
		}
	}

	log.Info().Msg("Server exited")
}
