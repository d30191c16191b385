package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/logger"
	"github.com/mverbeek/buurtlens/internal/telemetry"
)

// cancelledByUserMessage is stored when the host shutdown token interrupts a
// running job; the cooperative path carries its own verbatim message.
const cancelledByUserMessage = "Job cancelled by user."

// Executor claims at most one pending job per call and drives it to a
// terminal state. Processor failures never propagate past the executor; only
// store failures (claim or lifecycle writes) surface to the worker.
type Executor struct {
	store    JobStore
	state    *StateManager
	registry *Registry
	logger   *logger.Logger
}

// NewExecutor creates a new Executor.
// Parameters:
//   - store: job store used for the claim and in-flight updates.
//   - state: state manager applying terminal transitions.
//   - registry: processor lookup table.
//   - log: logger instance.
// Returns:
//   - *Executor: initialized executor.
func NewExecutor(store JobStore, state *StateManager, registry *Registry, log *logger.Logger) *Executor {
	return &Executor{
		store:    store,
		state:    state,
		registry: registry,
		logger:   log,
	}
}

// ProcessNextJob claims the oldest pending job and runs it to completion.
// No pending job is a no-op, not an error.
// Parameters:
//   - ctx: host context; cancellation marks the job failed before returning.
// Returns:
//   - error: non-nil only for infrastructure failures (claim or store writes).
func (e *Executor) ProcessNextJob(ctx context.Context) error {
	job, err := e.store.GetNextPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to claim next pending job: %w", err)
	}
	if job == nil {
		return nil
	}

	telemetry.JobsClaimed.Inc()
	log := e.logger.WithFields(logger.Fields{
		logger.FieldJobID:   job.ID,
		logger.FieldJobType: string(job.Type),
	})
	log.Info("Processing batch job")

	// The claim already flipped the job to processing; persist the log line.
	// The guarded write loses to a cancellation that landed right after the
	// claim, in which case the job is already terminal and must stay so.
	job.AppendLog("Job started.")
	started, err := e.store.UpdateIfProcessing(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to persist job start: %w", err)
	}
	if !started {
		telemetry.JobsCancelled.Inc()
		log.Info("Job was cancelled before processing began")
		return nil
	}

	procErr := e.runProcessor(ctx, job)

	if procErr == nil {
		// Only mark completed if the processor didn't already end the job.
		if job.Status == domain.JobStatusProcessing {
			if err := e.state.MarkCompleted(ctx, job, defaultCompletedMessage); err != nil {
				return fmt.Errorf("failed to mark job completed: %w", err)
			}
		}
		telemetry.JobsCompleted.Inc()
		return nil
	}

	// Terminal writes use a detached context so the failed status persists
	// even when the host token fired during shutdown.
	terminalCtx := context.WithoutCancel(ctx)

	var cancelled *CancelledError
	switch {
	case errors.As(procErr, &cancelled):
		telemetry.JobsCancelled.Inc()
		if err := e.state.MarkFailed(terminalCtx, job, cancelled.Message, nil); err != nil {
			return fmt.Errorf("failed to mark cancelled job failed: %w", err)
		}
	case errors.Is(procErr, context.Canceled):
		telemetry.JobsCancelled.Inc()
		if err := e.state.MarkFailed(terminalCtx, job, cancelledByUserMessage, nil); err != nil {
			return fmt.Errorf("failed to mark cancelled job failed: %w", err)
		}
	default:
		telemetry.JobsFailed.Inc()
		if err := e.state.MarkFailed(terminalCtx, job, "", procErr); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
	}
	return nil
}

// runProcessor resolves and invokes the processor for the job's type. A
// missing processor is a configuration error that fails the job, not the
// worker.
func (e *Executor) runProcessor(ctx context.Context, job *domain.BatchJob) error {
	processor, ok := e.registry.Lookup(job.Type)
	if !ok {
		e.logger.WithField(logger.FieldJobType, string(job.Type)).Error("No processor registered for job type")
		return fmt.Errorf("system configuration error: no processor registered for job type %q", job.Type)
	}
	return processor.Process(ctx, job)
}
