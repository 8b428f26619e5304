package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/qbo-converter/internal/config"
	"github.com/dvloznov/qbo-converter/internal/extract"
	"github.com/dvloznov/qbo-converter/internal/jobs/inmemory"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
	"github.com/dvloznov/qbo-converter/internal/storage"
	"github.com/rs/zerolog"
)

// NewConverter builds the conversion pipeline described by cfg. PDF
// uploads are only parsed when worker.parse_pdf is set.
func NewConverter(ctx context.Context, cfg *config.Config, store storage.ObjectStore) (*pipeline.Pipeline, error) {
	extractor := extract.NewExtractor(extract.DefaultLayout(), cfg.Dates.AssumedYear)
	encoder := ofx.NewEncoder(cfg.Institution)

	var parser pipeline.StatementParser
	if cfg.Worker.ParsePDF {
		gemini, err := pipeline.NewGeminiParser(ctx, cfg.Worker.Model, cfg.Dates.AssumedYear)
		if err != nil {
			return nil, fmt.Errorf("failed to create statement parser: %w", err)
		}
		parser = gemini
	}

	return pipeline.NewConversionPipeline(store, extractor, parser, encoder), nil
}

// Runtime runs the bundled converter inside a process: queue, job history,
// handler and scanner.
type Runtime struct {
	Jobs    *inmemory.Store
	Queue   *inmemory.Queue
	Worker  *Worker
	Scanner *Scanner

	log  zerolog.Logger
	wg   sync.WaitGroup
	stop context.CancelFunc
}

// NewRuntime wires a Runtime around converter.
func NewRuntime(store storage.ObjectStore, converter Converter, cfg config.WorkerConfig, log zerolog.Logger) *Runtime {
	jobStore := inmemory.NewStore(inmemory.WithHistory(cfg.HistorySize))
	queue := inmemory.NewQueue(cfg.QueueSize, jobStore,
		inmemory.WithWorkers(cfg.Concurrency),
		inmemory.WithMaxRetries(cfg.MaxRetries),
		inmemory.WithLogger(log),
	)

	return &Runtime{
		Jobs:    jobStore,
		Queue:   queue,
		Worker:  New(converter, queue, log),
		Scanner: NewScanner(store, queue, jobStore, cfg.PollInterval, log),
		log:     log,
	}
}

// Start launches the queue workers and the scanner. They run until Stop.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.stop = cancel

	if err := r.Queue.Start(ctx, r.Worker.Handle); err != nil {
		cancel()
		return fmt.Errorf("failed to start job consumer: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Scanner.Run(ctx)
	}()

	r.log.Info().Msg("Converter worker started")
	return nil
}

// Stop halts the scanner, waits for in-flight jobs until ctx expires and
// closes the queue.
func (r *Runtime) Stop(ctx context.Context) error {
	if r.stop != nil {
		r.stop()
	}
	r.wg.Wait()

	err := r.Queue.Stop(ctx)
	if cerr := r.Queue.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
