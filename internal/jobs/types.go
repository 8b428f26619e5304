package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeConvertStatement converts one uploaded statement to QBO.
	JobTypeConvertStatement JobType = "convert_statement"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

var (
	// ErrJobNotFound is returned by a JobStore for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueClosed is returned when publishing to a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrAlreadyQueued is returned when a source already has a job in flight.
	ErrAlreadyQueued = errors.New("source already queued")
)

// ConvertJob represents a job to convert one object under incoming/.
type ConvertJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// SourceKey is the uploaded statement's object key.
	SourceKey string `json:"source_key"`

	// OriginalName is the uploaded filename, when known at publish time.
	OriginalName string `json:"original_name,omitempty"`

	// DerivedKey is where the QBO file was written. Set once resolved.
	DerivedKey string `json:"derived_key,omitempty"`

	Transactions int `json:"transactions,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ConvertJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ConvertJob) GetType() JobType {
	return JobTypeConvertStatement
}

// GetStatus implements the Job interface.
func (j *ConvertJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishConvert enqueues a conversion. It fails with ErrAlreadyQueued
	// while another job for the same source is pending or running.
	PublishConvert(ctx context.Context, job *ConvertJob) error

	// InFlight reports whether sourceKey has a pending or running job.
	InFlight(sourceKey string) bool

	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job *ConvertJob) error

// JobStore keeps the history of conversion jobs run by this process.
type JobStore interface {
	SaveJob(ctx context.Context, job *ConvertJob) error
	GetJob(ctx context.Context, jobID string) (*ConvertJob, error)
	// LatestForSource returns the most recent job for an upload.
	LatestForSource(ctx context.Context, sourceKey string) (*ConvertJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ConvertJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	SourceKey string
	Status    JobStatus
	Limit     int
	Offset    int
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
