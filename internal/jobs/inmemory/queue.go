package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/qbo-converter/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultWorkers    = 5
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers started by Start.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBackoff sets the base retry delay. Retry n waits n times this long.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// WithMaxRetries sets the retry budget for jobs published without one.
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.retries = n
		}
	}
}

// WithLogger sets the logger used for job outcomes.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Only one job per source key is pending or running at any time.
type Queue struct {
	jobChan   chan *jobs.ConvertJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	workers   int
	backoff   time.Duration
	retries   int
	log       zerolog.Logger

	inflightMu sync.Mutex
	inflight   map[string]string // source key -> job ID
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishConvert blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.ConvertJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   defaultWorkers,
		backoff:   defaultBackoff,
		retries:   defaultMaxRetries,
		log:       zerolog.Nop(),
		inflight:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishConvert implements the Publisher interface.
func (q *Queue) PublishConvert(ctx context.Context, job *jobs.ConvertJob) error {
	if job.SourceKey == "" {
		return fmt.Errorf("source key is required")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if !q.claim(job.SourceKey, job.JobID) {
		return fmt.Errorf("%s: %w", job.SourceKey, jobs.ErrAlreadyQueued)
	}

	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.retries
	}

	if err := q.enqueue(ctx, job); err != nil {
		q.release(job.SourceKey)
		return err
	}
	return nil
}

// InFlight implements the Publisher interface.
func (q *Queue) InFlight(sourceKey string) bool {
	q.inflightMu.Lock()
	defer q.inflightMu.Unlock()
	_, ok := q.inflight[sourceKey]
	return ok
}

func (q *Queue) claim(sourceKey, jobID string) bool {
	q.inflightMu.Lock()
	defer q.inflightMu.Unlock()
	if _, ok := q.inflight[sourceKey]; ok {
		return false
	}
	q.inflight[sourceKey] = jobID
	return true
}

func (q *Queue) release(sourceKey string) {
	q.inflightMu.Lock()
	defer q.inflightMu.Unlock()
	delete(q.inflight, sourceKey)
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.ConvertJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start implements the Consumer interface.
// Jobs are handled concurrently by the configured number of workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.ConvertJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	log := q.log.With().Str("job_id", job.JobID).Str("file_key", job.SourceKey).Logger()

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries && !jobs.IsPermanent(err) {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			backoff := time.Duration(job.RetryCount) * q.backoff

			log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("Conversion failed, retrying")

			retry := *job
			retry.Status = jobs.JobStatusPending
			retry.StartedAt = nil
			retry.CompletedAt = nil
			time.AfterFunc(backoff, func() {
				if err := q.enqueue(ctx, &retry); err != nil {
					q.release(retry.SourceKey)
					log.Warn().Err(err).Msg("Dropped retry")
				}
			})
		} else {
			job.Status = jobs.JobStatusFailed
			q.release(job.SourceKey)
			log.Error().Err(err).Int("retries", job.RetryCount).Msg("Conversion failed")
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.release(job.SourceKey)
		log.Info().Str("parsed_key", job.DerivedKey).Int("transactions", job.Transactions).Msg("Conversion completed")
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
