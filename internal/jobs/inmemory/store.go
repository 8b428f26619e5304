package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/qbo-converter/internal/jobs"
)

// DefaultHistory is how many jobs a Store keeps unless told otherwise.
const DefaultHistory = 1000

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHistory bounds the number of jobs kept. Once full, the oldest finished
// job is forgotten for every new one; pending and running jobs are never
// evicted.
func WithHistory(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.history = n
		}
	}
}

// Store keeps conversion jobs in memory, newest last, with an index of the
// latest job per source key. It is safe for concurrent use. Data is lost on
// restart; the converted objects in the bucket remain the source of truth.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]*jobs.ConvertJob
	order    []string          // job IDs in first-save order
	bySource map[string]string // source key -> latest job ID
	history  int
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		byID:     make(map[string]*jobs.ConvertJob),
		bySource: make(map[string]string),
		history:  DefaultHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveJob records a job or replaces the stored copy of it.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ConvertJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *job
	if _, seen := s.byID[job.JobID]; !seen {
		s.order = append(s.order, job.JobID)
		s.bySource[job.SourceKey] = job.JobID
	}
	s.byID[job.JobID] = &stored
	s.evict()
	return nil
}

// evict drops the oldest finished jobs while the store is over its bound.
// Caller holds s.mu.
func (s *Store) evict() {
	for i := 0; len(s.order) > s.history && i < len(s.order); {
		id := s.order[i]
		job := s.byID[id]
		if job.Status == jobs.JobStatusPending || job.Status == jobs.JobStatusRunning || job.Status == jobs.JobStatusRetrying {
			i++
			continue
		}
		delete(s.byID, id)
		if s.bySource[job.SourceKey] == id {
			delete(s.bySource, job.SourceKey)
		}
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
}

// GetJob returns a copy of the job or jobs.ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ConvertJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", jobID, jobs.ErrJobNotFound)
	}
	stored := *job
	return &stored, nil
}

// LatestForSource returns the most recent job for an upload or
// jobs.ErrJobNotFound.
func (s *Store) LatestForSource(ctx context.Context, sourceKey string) (*jobs.ConvertJob, error) {
	s.mu.RLock()
	id, ok := s.bySource[sourceKey]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", sourceKey, jobs.ErrJobNotFound)
	}
	return s.GetJob(ctx, id)
}

// ListJobs returns copies of the matching jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ConvertJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.ConvertJob{}
	skip := filter.Offset
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.byID[s.order[i]]
		if filter.SourceKey != "" && job.SourceKey != filter.SourceKey {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}

		stored := *job
		result = append(result, &stored)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)
