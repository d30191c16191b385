package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutorWithProcessor(store *fakeJobStore, p Processor) *Executor {
	log := testLogger()
	return NewExecutor(store, NewStateManager(store, log), NewRegistry(p), log)
}

func enqueue(t *testing.T, store *fakeJobStore, jobType domain.BatchJobType, target string) *domain.BatchJob {
	t.Helper()
	job := &domain.BatchJob{
		ID:     "job-" + target,
		Type:   jobType,
		Target: target,
		Status: domain.JobStatusPending,
	}
	require.NoError(t, store.Add(context.Background(), job))
	return job
}

func TestExecutor_EmptyQueueIsNoOp(t *testing.T) {
	store := newFakeJobStore()
	ex := newExecutorWithProcessor(store, &stubProcessor{jobType: domain.JobTypeCityIngestion})

	require.NoError(t, ex.ProcessNextJob(context.Background()))
	assert.Equal(t, 0, store.updateCount)
}

func TestExecutor_ClaimFailureSurfaces(t *testing.T) {
	store := newFakeJobStore()
	store.claimErr = errors.New("connection reset")
	ex := newExecutorWithProcessor(store, &stubProcessor{jobType: domain.JobTypeCityIngestion})

	err := ex.ProcessNextJob(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.claimErr)
}

func TestExecutor_SuccessMarksCompleted(t *testing.T) {
	store := newFakeJobStore()
	enqueue(t, store, domain.JobTypeCityIngestion, "Amsterdam")
	ex := newExecutorWithProcessor(store, &stubProcessor{
		jobType: domain.JobTypeCityIngestion,
		fn: func(ctx context.Context, job *domain.BatchJob) error {
			summary := "Processed 3 neighborhoods."
			job.ResultSummary = &summary
			return nil
		},
	})

	require.NoError(t, ex.ProcessNextJob(context.Background()))

	stored, err := store.GetByID(context.Background(), "job-Amsterdam")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.Nil(t, stored.Error)
	require.NotNil(t, stored.ResultSummary)
	assert.Equal(t, "Processed 3 neighborhoods.", *stored.ResultSummary)
	assert.NotNil(t, stored.CompletedAt)
}

func TestExecutor_CancelledRightAfterClaimIsNotRestarted(t *testing.T) {
	store := newFakeJobStore()
	store.cancelBeforeStart = true
	enqueue(t, store, domain.JobTypeCityIngestion, "Leiden")

	invoked := false
	ex := newExecutorWithProcessor(store, &stubProcessor{
		jobType: domain.JobTypeCityIngestion,
		fn: func(ctx context.Context, job *domain.BatchJob) error {
			invoked = true
			return nil
		},
	})

	require.NoError(t, ex.ProcessNextJob(context.Background()))

	assert.False(t, invoked)
	stored, err := store.GetByID(context.Background(), "job-Leiden")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
}

func TestExecutor_ProcessorErrorMarksFailedWithGenericMessage(t *testing.T) {
	store := newFakeJobStore()
	enqueue(t, store, domain.JobTypeCityIngestion, "Utrecht")
	ex := newExecutorWithProcessor(store, &stubProcessor{
		jobType: domain.JobTypeCityIngestion,
		fn: func(ctx context.Context, job *domain.BatchJob) error {
			return errors.New("pq: relation does not exist")
		},
	})

	// Processor failures terminate the job, not the worker.
	require.NoError(t, ex.ProcessNextJob(context.Background()))

	stored, err := store.GetByID(context.Background(), "job-Utrecht")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Equal(t, "Job failed due to an internal error.", *stored.Error)
	assert.NotContains(t, stored.ExecutionLog(), "relation does not exist")
}

func TestExecutor_CancelledErrorStoresVerbatimMessage(t *testing.T) {
	store := newFakeJobStore()
	enqueue(t, store, domain.JobTypeCityIngestion, "Leiden")
	ex := newExecutorWithProcessor(store, &stubProcessor{
		jobType: domain.JobTypeCityIngestion,
		fn: func(ctx context.Context, job *domain.BatchJob) error {
			return &CancelledError{Message: "Job cancelled by user."}
		},
	})

	require.NoError(t, ex.ProcessNextJob(context.Background()))

	stored, err := store.GetByID(context.Background(), "job-Leiden")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Equal(t, "Job cancelled by user.", *stored.Error)
}

func TestExecutor_HostCancellationMarksFailed(t *testing.T) {
	store := newFakeJobStore()
	enqueue(t, store, domain.JobTypeCityIngestion, "Delft")

	ctx, cancel := context.WithCancel(context.Background())
	ex := newExecutorWithProcessor(store, &stubProcessor{
		jobType: domain.JobTypeCityIngestion,
		fn: func(ctx context.Context, job *domain.BatchJob) error {
			cancel()
			return ctx.Err()
		},
	})

	require.NoError(t, ex.ProcessNextJob(ctx))

	// The terminal write still lands despite the cancelled host context.
	stored, err := store.GetByID(context.Background(), "job-Delft")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Equal(t, "Job cancelled by user.", *stored.Error)
}

func TestExecutor_MissingProcessorFailsJob(t *testing.T) {
	store := newFakeJobStore()
	enqueue(t, store, domain.JobTypeMapGeneration, "nl")
	ex := newExecutorWithProcessor(store, &stubProcessor{jobType: domain.JobTypeCityIngestion})

	require.NoError(t, ex.ProcessNextJob(context.Background()))

	stored, err := store.GetByID(context.Background(), "job-nl")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Equal(t, "Job failed due to an internal error.", *stored.Error)
}

func TestExecutor_ProcessorEndedJobIsNotOverwritten(t *testing.T) {
	store := newFakeJobStore()
	enqueue(t, store, domain.JobTypeCityIngestion, "Gouda")
	ex := newExecutorWithProcessor(store, &stubProcessor{
		jobType: domain.JobTypeCityIngestion,
		fn: func(ctx context.Context, job *domain.BatchJob) error {
			// A processor may finalize the job itself.
			job.Status = domain.JobStatusCompleted
			return store.Update(ctx, job)
		},
	})

	require.NoError(t, ex.ProcessNextJob(context.Background()))

	stored, err := store.GetByID(context.Background(), "job-Gouda")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
}

func TestRegistry_DuplicateTypePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry(
			&stubProcessor{jobType: domain.JobTypeCityIngestion},
			&stubProcessor{jobType: domain.JobTypeCityIngestion},
		)
	})
}

func TestIsCancelled(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), &CancelledError{Message: "stop"})
	assert.True(t, IsCancelled(wrapped))
	assert.False(t, IsCancelled(errors.New("plain")))
	assert.False(t, IsCancelled(context.Canceled))
}
