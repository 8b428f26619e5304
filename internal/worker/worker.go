// Package worker is the bundled converter: it picks up statements under
// incoming/ and writes their QBO files under parsed/.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/qbo-converter/internal/domain"
	"github.com/dvloznov/qbo-converter/internal/jobs"
	"github.com/dvloznov/qbo-converter/internal/pipeline"
	"github.com/rs/zerolog"
)

// Converter runs one conversion pipeline.
type Converter interface {
	Execute(ctx context.Context, state *pipeline.PipelineState) error
}

// Worker turns queued jobs into pipeline runs.
type Worker struct {
	converter Converter
	publisher jobs.Publisher
	log       zerolog.Logger
}

// New creates a Worker.
func New(converter Converter, publisher jobs.Publisher, log zerolog.Logger) *Worker {
	return &Worker{converter: converter, publisher: publisher, log: log}
}

// Handle implements jobs.JobHandler. Failures that another attempt cannot
// fix are marked permanent.
func (w *Worker) Handle(ctx context.Context, job *jobs.ConvertJob) error {
	state := &pipeline.PipelineState{
		SourceKey:    job.SourceKey,
		OriginalName: job.OriginalName,
	}

	err := w.converter.Execute(ctx, state)
	job.DerivedKey = state.DerivedKey
	job.Transactions = len(state.Batch)
	if err == nil {
		if state.AlreadyConverted {
			w.log.Debug().Str("file_key", job.SourceKey).Str("parsed_key", state.DerivedKey).Msg("Already converted")
		}
		return nil
	}

	if errors.Is(err, pipeline.ErrUnsupportedFormat) || errors.Is(err, domain.ErrNoTransactions) {
		return jobs.Permanent(err)
	}
	return err
}

// SourceUploaded implements ingest.Notifier by queueing the new upload.
func (w *Worker) SourceUploaded(ctx context.Context, sourceKey, originalName string) error {
	err := w.publisher.PublishConvert(ctx, &jobs.ConvertJob{
		SourceKey:    sourceKey,
		OriginalName: originalName,
	})
	if errors.Is(err, jobs.ErrAlreadyQueued) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("queue %s: %w", sourceKey, err)
	}
	return nil
}
