package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mverbeek/buurtlens/internal/cbs"
	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/logger"
	"github.com/mverbeek/buurtlens/internal/telemetry"
)

// CityIngestionProcessor ingests all neighborhoods of one municipality:
// geometries from the geo client, demographics and crime figures fetched
// concurrently per neighborhood, written through the neighborhood store in
// batches. Per-item flushing would serialize writes behind each fetch;
// batching every N items amortizes write cost while keeping memory bounded
// and progress updates frequent.
type CityIngestionProcessor struct {
	store         JobStore
	neighborhoods NeighborhoodStore
	geo           GeoClient
	stats         NeighborhoodStatsClient
	crime         CrimeStatsClient
	checkEvery    int
	batchSize     int
	logger        *logger.Logger
}

// NewCityIngestionProcessor creates a new CityIngestionProcessor.
// Parameters:
//   - store: job store used for progress updates and the cancellation poll.
//   - neighborhoods: batched neighborhood writer.
//   - geo: neighborhood geometry source.
//   - stats: demographic statistics source.
//   - crime: crime statistics source.
//   - checkEvery: items between cancellation polls.
//   - batchSize: items per write flush.
//   - log: logger instance.
// Returns:
//   - *CityIngestionProcessor: initialized processor.
func NewCityIngestionProcessor(
	store JobStore,
	neighborhoods NeighborhoodStore,
	geo GeoClient,
	stats NeighborhoodStatsClient,
	crime CrimeStatsClient,
	checkEvery int,
	batchSize int,
	log *logger.Logger,
) *CityIngestionProcessor {
	if checkEvery <= 0 {
		checkEvery = 10
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &CityIngestionProcessor{
		store:         store,
		neighborhoods: neighborhoods,
		geo:           geo,
		stats:         stats,
		crime:         crime,
		checkEvery:    checkEvery,
		batchSize:     batchSize,
		logger:        log,
	}
}

func (p *CityIngestionProcessor) Type() domain.BatchJobType {
	return domain.JobTypeCityIngestion
}

// Process ingests the neighborhoods of job.Target. Zero neighborhoods is a
// valid terminal outcome with zero store writes. Existing records for the
// city are pre-loaded into a lookup keyed by code, so re-running the same
// target updates records in place instead of duplicating them.
func (p *CityIngestionProcessor) Process(ctx context.Context, job *domain.BatchJob) error {
	log := p.logger.WithFields(logger.Fields{
		logger.FieldJobID: job.ID,
		logger.FieldCity:  job.Target,
	})
	log.Info("Processing city ingestion")
	job.AppendLog(fmt.Sprintf("Processing city ingestion for %s", job.Target))

	geometries, err := p.geo.NeighborhoodsByMunicipality(ctx, job.Target)
	if err != nil {
		return fmt.Errorf("failed to fetch neighborhoods for city %q: %w", job.Target, err)
	}
	if len(geometries) == 0 {
		job.AppendLog("No neighborhoods found for city.")
		summary := "No neighborhoods found for city."
		job.ResultSummary = &summary
		return nil
	}

	// One query instead of one lookup per item.
	existing, err := p.neighborhoods.GetByCity(ctx, job.Target)
	if err != nil {
		return fmt.Errorf("failed to load existing neighborhoods for city %q: %w", job.Target, err)
	}
	byCode := make(map[string]*domain.Neighborhood, len(existing))
	for i := range existing {
		byCode[existing[i].Code] = &existing[i]
	}

	total := len(geometries)
	var toAdd, toUpdate []*domain.Neighborhood

	for i := range geometries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if i%p.checkEvery == 0 {
			status, err := p.store.GetStatus(ctx, job.ID)
			if err != nil {
				return fmt.Errorf("failed to poll job status: %w", err)
			}
			if status == domain.JobStatusFailed {
				log.Info("Job was cancelled during execution")
				return &CancelledError{Message: cancelledByUserMessage}
			}
		}

		neighborhood, isNew, err := p.enrich(ctx, &geometries[i], job.Target, byCode)
		if err != nil {
			return err
		}
		if isNew {
			toAdd = append(toAdd, neighborhood)
		} else {
			toUpdate = append(toUpdate, neighborhood)
		}

		count := i + 1
		if count%p.batchSize == 0 || count == total {
			if err := p.flush(ctx, toAdd, toUpdate, byCode); err != nil {
				return err
			}
			toAdd, toUpdate = nil, nil

			job.SetProgress(count * 100 / total)
			job.AppendLog(fmt.Sprintf("Processed %d/%d neighborhoods.", count, total))
			// Guarded write: a cancellation landing after the status poll
			// flips the row to failed, and this checkpoint must not revert it.
			ok, err := p.store.UpdateIfProcessing(ctx, job)
			if err != nil {
				return fmt.Errorf("failed to persist job progress: %w", err)
			}
			if !ok {
				log.Info("Job was cancelled during execution")
				return &CancelledError{Message: cancelledByUserMessage}
			}
		}
	}

	job.AppendLog(fmt.Sprintf("Processed %d neighborhoods.", total))
	summary := fmt.Sprintf("Processed %d neighborhoods.", total)
	job.ResultSummary = &summary
	return nil
}

// flush persists the accumulated batches: one AddRange write and one
// UpdateRange write. Added records join the lookup so a duplicate code later
// in the list resolves to an update.
func (p *CityIngestionProcessor) flush(ctx context.Context, toAdd, toUpdate []*domain.Neighborhood, byCode map[string]*domain.Neighborhood) error {
	if len(toAdd) > 0 {
		if err := p.neighborhoods.AddRange(ctx, toAdd); err != nil {
			return fmt.Errorf("failed to insert neighborhood batch: %w", err)
		}
		for _, n := range toAdd {
			byCode[n.Code] = n
		}
		telemetry.NeighborhoodsWritten.Add(float64(len(toAdd)))
	}
	if len(toUpdate) > 0 {
		if err := p.neighborhoods.UpdateRange(ctx, toUpdate); err != nil {
			return fmt.Errorf("failed to update neighborhood batch: %w", err)
		}
		telemetry.NeighborhoodsWritten.Add(float64(len(toUpdate)))
	}
	return nil
}

// enrich resolves whether the geometry maps to a new or existing record and
// merges freshly fetched statistics into its derived fields. The two stats
// sources are independent reads, fetched concurrently to halve the per-item
// wall-clock latency.
func (p *CityIngestionProcessor) enrich(
	ctx context.Context,
	geo *cbs.NeighborhoodGeometry,
	city string,
	byCode map[string]*domain.Neighborhood,
) (*domain.Neighborhood, bool, error) {
	neighborhood, isNew := byCode[geo.Code], false
	if neighborhood == nil {
		neighborhood = &domain.Neighborhood{
			Code:      geo.Code,
			Name:      geo.Name,
			City:      city,
			Type:      geo.Type,
			Latitude:  geo.Latitude,
			Longitude: geo.Longitude,
		}
		isNew = true
	}

	var (
		crime    *cbs.CrimeStats
		crimeErr error
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		crime, crimeErr = p.crime.CrimeStats(ctx, geo.Code)
	}()
	stats, statsErr := p.stats.Stats(ctx, geo.Code)
	wg.Wait()

	if statsErr != nil {
		return nil, false, fmt.Errorf("failed to fetch stats for neighborhood %q in city %q: %w", geo.Code, city, statsErr)
	}
	if crimeErr != nil {
		return nil, false, fmt.Errorf("failed to fetch crime stats for neighborhood %q in city %q: %w", geo.Code, city, crimeErr)
	}

	if stats != nil {
		neighborhood.PopulationDensity = stats.PopulationDensity
		if stats.AverageWozValueKeur != nil {
			woz := *stats.AverageWozValueKeur * 1000
			neighborhood.AverageWozValue = &woz
		}
	}
	if crime != nil {
		neighborhood.CrimeRate = crime.TotalCrimesPer1000
	}
	now := time.Now().UTC()
	neighborhood.LastUpdated = &now

	return neighborhood, isNew, nil
}
