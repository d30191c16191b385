package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/logger"
	"github.com/mverbeek/buurtlens/internal/telemetry"
)

// AllCitiesProcessor fans one job out into a city-ingestion child job per
// municipality. It does no ingestion work itself; children compete for claims
// like any other pending job.
type AllCitiesProcessor struct {
	store      JobStore
	geo        GeoClient
	checkEvery int
	logger     *logger.Logger
}

// NewAllCitiesProcessor creates a new AllCitiesProcessor.
// Parameters:
//   - store: job store used for child creation and the cancellation poll.
//   - geo: municipality source.
//   - checkEvery: items between cancellation polls and progress writes.
//   - log: logger instance.
// Returns:
//   - *AllCitiesProcessor: initialized processor.
func NewAllCitiesProcessor(store JobStore, geo GeoClient, checkEvery int, log *logger.Logger) *AllCitiesProcessor {
	if checkEvery <= 0 {
		checkEvery = 10
	}
	return &AllCitiesProcessor{
		store:      store,
		geo:        geo,
		checkEvery: checkEvery,
		logger:     log,
	}
}

func (p *AllCitiesProcessor) Type() domain.BatchJobType {
	return domain.JobTypeAllCitiesIngestion
}

// Process queues one city-ingestion job per municipality. An empty
// municipality list is a valid terminal outcome, not a failure. Every
// checkEvery municipalities the job's own persisted status is re-read; an
// externally flipped failed status raises a CancelledError.
func (p *AllCitiesProcessor) Process(ctx context.Context, job *domain.BatchJob) error {
	p.logger.WithField(logger.FieldJobID, job.ID).Info("Processing all cities ingestion")

	job.AppendLog("Fetching all municipalities from CBS...")
	if err := p.checkpoint(ctx, job); err != nil {
		return err
	}

	cities, err := p.geo.Municipalities(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch municipalities: %w", err)
	}
	if len(cities) == 0 {
		job.AppendLog("No municipalities found.")
		summary := "No municipalities found."
		job.ResultSummary = &summary
		return nil
	}

	job.AppendLog(fmt.Sprintf("Found %d municipalities. Queueing jobs...", len(cities)))

	for count, city := range cities {
		if err := ctx.Err(); err != nil {
			return err
		}

		if count%p.checkEvery == 0 {
			status, err := p.store.GetStatus(ctx, job.ID)
			if err != nil {
				return fmt.Errorf("failed to poll job status: %w", err)
			}
			if status == domain.JobStatusFailed {
				p.logger.WithField(logger.FieldJobID, job.ID).Info("Job was cancelled during execution")
				return &CancelledError{Message: cancelledByUserMessage}
			}

			job.SetProgress(count * 100 / len(cities))
			if err := p.checkpoint(ctx, job); err != nil {
				return err
			}
		}

		child := &domain.BatchJob{
			ID:     uuid.New().String(),
			Type:   domain.JobTypeCityIngestion,
			Target: city,
			Status: domain.JobStatusPending,
		}
		if err := p.store.Add(ctx, child); err != nil {
			return fmt.Errorf("failed to queue ingestion job for %q: %w", city, err)
		}
		telemetry.ChildJobsQueued.Inc()
	}

	summary := fmt.Sprintf("Queued ingestion for %d municipalities.", len(cities))
	job.ResultSummary = &summary
	job.AppendLog(fmt.Sprintf("Successfully queued %d jobs.", len(cities)))
	return nil
}

// checkpoint persists progress with a status-guarded write. A cancellation
// that lands between the status poll and this write flips the row to failed;
// the guard refuses the write so the cancel is not reverted.
func (p *AllCitiesProcessor) checkpoint(ctx context.Context, job *domain.BatchJob) error {
	ok, err := p.store.UpdateIfProcessing(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to persist job progress: %w", err)
	}
	if !ok {
		p.logger.WithField(logger.FieldJobID, job.ID).Info("Job was cancelled during execution")
		return &CancelledError{Message: cancelledByUserMessage}
	}
	return nil
}
