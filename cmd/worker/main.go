// Command worker runs the bundled converter on its own: it scans the bucket
// for uploads under incoming/ and writes QBO files under parsed/.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/qbo-converter/internal/config"
	"github.com/dvloznov/qbo-converter/internal/logger"
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
	// The worker only makes sense when enabled; running it is the opt-in.
	cfg.Worker.Enabled = true
	if err := cfg.Validate(); err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Storage.Backend == storage.BackendMemory {
		bootLog.Warn().Msg("Memory storage is private to this process; no uploads will arrive")
	}

	log, err := logger.NewFromConfig(cfg.Log, os.Stdout)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to create logger")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}
	defer store.Close()

	conv, err := worker.NewConverter(ctx, cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create conversion pipeline")
	}

	rt := worker.NewRuntime(store, conv, cfg.Worker, log)
	if err := rt.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start converter worker")
	}

	log.Info().
		Str("bucket", store.Bucket()).
		Dur("poll_interval", cfg.Worker.PollInterval).
		Int("concurrency", cfg.Worker.Concurrency).
		Bool("parse_pdf", cfg.Worker.ParsePDF).
		Msg("Worker service started, waiting for uploads...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := rt.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
