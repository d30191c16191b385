package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/logger"
	"github.com/mverbeek/buurtlens/internal/repository"
	"gorm.io/gorm"
)

var (
	// ErrJobNotFound is returned when a job ID does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotRetryable is returned when retrying a job that is not terminal.
	ErrNotRetryable = errors.New("only failed or completed jobs can be retried")
	// ErrNotCancellable is returned when cancelling a job that already
	// reached a terminal state.
	ErrNotCancellable = errors.New("cannot cancel a completed or failed job")
)

// JobStore is the persistence surface the job service needs. It is satisfied
// by repository.BatchJobRepository.
type JobStore interface {
	Add(ctx context.Context, job *domain.BatchJob) error
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	Update(ctx context.Context, job *domain.BatchJob) error
	Recent(ctx context.Context, limit int) ([]domain.BatchJob, error)
	List(ctx context.Context, page, pageSize int, filter repository.ListFilter) ([]domain.BatchJob, int64, error)
}

// BatchJobService exposes the operator-facing job queue operations: enqueue,
// inspect, retry, and cancel. Cancel is the actor behind cooperative
// cancellation: it flips the persisted status to failed, and the running
// processor observes that at its next poll checkpoint.
type BatchJobService struct {
	store  JobStore
	logger *logger.Logger
}

// NewBatchJobService creates a new BatchJobService.
// Parameters:
//   - store: job store.
//   - log: logger instance.
// Returns:
//   - *BatchJobService: initialized service.
func NewBatchJobService(store JobStore, log *logger.Logger) *BatchJobService {
	return &BatchJobService{store: store, logger: log}
}

// Enqueue creates a new pending job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobType: processor selection tag.
//   - target: free-form job parameter (city name, region).
// Returns:
//   - *domain.BatchJob: the persisted job with its assigned ID.
//   - error: non-nil if the insert fails.
func (s *BatchJobService) Enqueue(ctx context.Context, jobType domain.BatchJobType, target string) (*domain.BatchJob, error) {
	job := &domain.BatchJob{
		ID:     uuid.New().String(),
		Type:   jobType,
		Target: target,
		Status: domain.JobStatusPending,
	}
	if err := s.store.Add(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// Recent returns the most recently created jobs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of jobs; non-positive defaults to 10.
// Returns:
//   - []domain.BatchJob: jobs, newest first.
//   - error: non-nil if the query fails.
func (s *BatchJobService) Recent(ctx context.Context, limit int) ([]domain.BatchJob, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.Recent(ctx, limit)
}

// List returns a page of jobs matching the filter.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - page: 1-based page index.
//   - pageSize: records per page.
//   - filter: optional status/type/search/sort narrowing.
// Returns:
//   - []domain.BatchJob: the requested page.
//   - int64: total matching records.
//   - error: non-nil if the query fails.
func (s *BatchJobService) List(ctx context.Context, page, pageSize int, filter repository.ListFilter) ([]domain.BatchJob, int64, error) {
	return s.store.List(ctx, page, pageSize, filter)
}

// Details retrieves one job including its full execution log.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.BatchJob: the job.
//   - error: ErrJobNotFound if absent, other non-nil on failure.
func (s *BatchJobService) Details(ctx context.Context, id string) (*domain.BatchJob, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// Retry resets a terminal job to pending so the worker picks it up again.
// Progress, error, summary, log, and timestamps are cleared; CreatedAt is
// bumped so the job joins the back of the FIFO queue.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.BatchJob: the reset job.
//   - error: ErrJobNotFound, ErrNotRetryable, or a store failure.
func (s *BatchJobService) Retry(ctx context.Context, id string) (*domain.BatchJob, error) {
	job, err := s.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, ErrNotRetryable
	}

	job.Status = domain.JobStatusPending
	job.Progress = 0
	job.Error = nil
	job.ResultSummary = nil
	job.LogLines = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	job.CreatedAt = time.Now().UTC()

	s.logger.WithField(logger.FieldJobID, id).Info("Job retried by operator")
	if err := s.store.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to reset job: %w", err)
	}
	return job, nil
}

// Cancel marks a pending or processing job as failed with a cancellation
// message. A processing job keeps running until its next status poll; the
// poll interval bounds how long that takes.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.BatchJob: the cancelled job.
//   - error: ErrJobNotFound, ErrNotCancellable, or a store failure.
func (s *BatchJobService) Cancel(ctx context.Context, id string) (*domain.BatchJob, error) {
	job, err := s.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, ErrNotCancellable
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	message := "Job cancelled by user."
	job.Error = &message
	job.CompletedAt = &now

	s.logger.WithField(logger.FieldJobID, id).Info("Job cancelled by operator")
	if err := s.store.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}
	return job, nil
}
