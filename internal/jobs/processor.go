// Package jobs implements the batch job orchestration engine: a single-worker
// polling loop that claims pending jobs from the store, dispatches them to
// type-specific processors, and tracks their lifecycle.
package jobs

import (
	"context"
	"fmt"

	"github.com/mverbeek/buurtlens/internal/cbs"
	"github.com/mverbeek/buurtlens/internal/domain"
)

// JobStore is the persistence contract the engine consumes. GetNextPending
// must atomically transition the returned job from pending to processing so
// that at most one worker claims a given job.
type JobStore interface {
	Add(ctx context.Context, job *domain.BatchJob) error
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	GetNextPending(ctx context.Context) (*domain.BatchJob, error)
	GetStatus(ctx context.Context, id string) (domain.BatchJobStatus, error)
	Update(ctx context.Context, job *domain.BatchJob) error
	UpdateIfProcessing(ctx context.Context, job *domain.BatchJob) (bool, error)
}

// NeighborhoodStore is the batched-write contract used by city ingestion.
// Each call is exactly one persisted write.
type NeighborhoodStore interface {
	GetByCity(ctx context.Context, city string) ([]domain.Neighborhood, error)
	AddRange(ctx context.Context, neighborhoods []*domain.Neighborhood) error
	UpdateRange(ctx context.Context, neighborhoods []*domain.Neighborhood) error
}

// GeoClient supplies municipality names and neighborhood geometries.
type GeoClient interface {
	Municipalities(ctx context.Context) ([]string, error)
	NeighborhoodsByMunicipality(ctx context.Context, municipality string) ([]cbs.NeighborhoodGeometry, error)
}

// NeighborhoodStatsClient supplies demographic figures per region code.
type NeighborhoodStatsClient interface {
	Stats(ctx context.Context, regionCode string) (*cbs.NeighborhoodStats, error)
}

// CrimeStatsClient supplies crime figures per region code.
type CrimeStatsClient interface {
	CrimeStats(ctx context.Context, regionCode string) (*cbs.CrimeStats, error)
}

// Processor executes the work of one job type. Implementations must let
// genuine failures propagate and treat empty upstream results as success.
type Processor interface {
	Type() domain.BatchJobType
	Process(ctx context.Context, job *domain.BatchJob) error
}

// Registry maps job types to their processors. It is built once at startup;
// registering two processors for the same type is a programming error.
type Registry struct {
	processors map[domain.BatchJobType]Processor
}

// NewRegistry creates a Registry from the given processors.
// Parameters:
//   - processors: one processor per job type.
// Returns:
//   - *Registry: lookup table keyed by job type.
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[domain.BatchJobType]Processor, len(processors))}
	for _, p := range processors {
		if _, exists := r.processors[p.Type()]; exists {
			panic(fmt.Sprintf("jobs: duplicate processor registered for type %q", p.Type()))
		}
		r.processors[p.Type()] = p
	}
	return r
}

// Lookup resolves the processor for a job type.
// Parameters:
//   - jobType: type tag of the claimed job.
// Returns:
//   - Processor: matching processor.
//   - bool: false when no processor is registered for the type.
func (r *Registry) Lookup(jobType domain.BatchJobType) (Processor, bool) {
	p, ok := r.processors[jobType]
	return p, ok
}
