package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/qbo-converter/internal/ingest"
	"github.com/dvloznov/qbo-converter/internal/jobs"
	"github.com/dvloznov/qbo-converter/internal/storage"
	"github.com/rs/zerolog"
)

// Scanner finds uploads that have no converted file yet and queues them.
// It catches uploads made through other processes and anything lost from
// the queue on restart.
type Scanner struct {
	store     storage.ObjectStore
	publisher jobs.Publisher
	jobStore  jobs.JobStore
	interval  time.Duration
	log       zerolog.Logger
}

// NewScanner creates a Scanner. jobStore may be nil; when set, sources
// whose last job failed are not queued again.
func NewScanner(store storage.ObjectStore, publisher jobs.Publisher, jobStore jobs.JobStore, interval time.Duration, log zerolog.Logger) *Scanner {
	return &Scanner{
		store:     store,
		publisher: publisher,
		jobStore:  jobStore,
		interval:  interval,
		log:       log,
	}
}

// Run scans immediately and then on every tick until ctx is done.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if n, err := s.ScanOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("Scan failed")
		} else if n > 0 {
			s.log.Info().Int("queued", n).Msg("Queued pending uploads")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce lists incoming/ and queues every source still waiting for
// conversion. It returns how many jobs were published.
func (s *Scanner) ScanOnce(ctx context.Context) (int, error) {
	objects, err := s.store.List(ctx, ingest.IncomingPrefix)
	if err != nil {
		return 0, fmt.Errorf("list uploads: %w", err)
	}

	queued := 0
	for _, obj := range objects {
		if _, ok := ingest.ParseSourceKey(obj.Key); !ok {
			continue
		}
		if s.publisher.InFlight(obj.Key) {
			continue
		}

		name := obj.Metadata[ingest.MetaOriginalName]
		if name != "" {
			_, err := s.store.Stat(ctx, ingest.DerivedKey(name))
			if err == nil {
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return queued, fmt.Errorf("probe derived for %s: %w", obj.Key, err)
			}
		}

		if s.failedBefore(ctx, obj.Key) {
			continue
		}

		err := s.publisher.PublishConvert(ctx, &jobs.ConvertJob{SourceKey: obj.Key, OriginalName: name})
		if errors.Is(err, jobs.ErrAlreadyQueued) {
			continue
		}
		if err != nil {
			return queued, fmt.Errorf("queue %s: %w", obj.Key, err)
		}
		queued++
	}
	return queued, nil
}

func (s *Scanner) failedBefore(ctx context.Context, sourceKey string) bool {
	if s.jobStore == nil {
		return false
	}
	last, err := s.jobStore.LatestForSource(ctx, sourceKey)
	return err == nil && last.Status == jobs.JobStatusFailed
}
