package jobs

import (
	"context"
	"time"

	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/logger"
)

const (
	// genericFailureMessage is the sanitized error stored on a job when an
	// unexpected error occurs. Raw error text never reaches the job record.
	genericFailureMessage = "Job failed due to an internal error."

	defaultCompletedMessage = "Job completed successfully."
	defaultFailedMessage    = "Job failed."
)

// StateManager applies lifecycle transitions to a job. Each transition
// appends one timestamped log line and performs exactly one store write; the
// log line is appended before the write so it is never lost, and a failed
// write surfaces to the caller.
type StateManager struct {
	store  JobStore
	logger *logger.Logger
}

// NewStateManager creates a new StateManager.
// Parameters:
//   - store: job store used to persist transitions.
//   - log: logger instance.
// Returns:
//   - *StateManager: initialized state manager.
func NewStateManager(store JobStore, log *logger.Logger) *StateManager {
	return &StateManager{store: store, logger: log}
}

// MarkStarted records that processing of a job began. The claim normally
// already set the status and start time; this ensures both and logs the line.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: claimed job.
// Returns:
//   - error: non-nil if persisting the transition fails.
func (m *StateManager) MarkStarted(ctx context.Context, job *domain.BatchJob) error {
	if job.Status != domain.JobStatusProcessing {
		job.Status = domain.JobStatusProcessing
	}
	if job.StartedAt == nil {
		now := time.Now().UTC()
		job.StartedAt = &now
	}
	job.AppendLog("Job started.")
	return m.store.Update(ctx, job)
}

// MarkCompleted transitions a job to completed with full progress.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to complete.
//   - message: log line; empty uses the default completion message.
// Returns:
//   - error: non-nil if persisting the transition fails.
func (m *StateManager) MarkCompleted(ctx context.Context, job *domain.BatchJob, message string) error {
	if message == "" {
		message = defaultCompletedMessage
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &now
	job.SetProgress(100)
	job.AppendLog(message)
	return m.store.Update(ctx, job)
}

// MarkFailed transitions a job to failed.
//
// With a cause the stored error is replaced by a generic sanitized message
// and the real error is logged server-side; with only a message (the
// cancellation path) the message is stored verbatim and logged at info.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to fail.
//   - message: user-supplied failure or cancellation message.
//   - cause: unexpected error, nil on the cancellation path.
// Returns:
//   - error: non-nil if persisting the transition fails.
func (m *StateManager) MarkFailed(ctx context.Context, job *domain.BatchJob, message string, cause error) error {
	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.CompletedAt = &now

	if cause != nil {
		sanitized := genericFailureMessage
		job.Error = &sanitized
		m.logger.WithFields(logger.Fields{
			logger.FieldJobID:   job.ID,
			logger.FieldJobType: string(job.Type),
		}).WithError(cause).Error("Batch job failed")
		job.AppendLog(genericFailureMessage)
	} else {
		if message == "" {
			message = defaultFailedMessage
		}
		job.Error = &message
		m.logger.WithFields(logger.Fields{
			logger.FieldJobID: job.ID,
		}).Infof("Batch job cancelled/failed: %s", message)
		job.AppendLog(message)
	}

	return m.store.Update(ctx, job)
}
