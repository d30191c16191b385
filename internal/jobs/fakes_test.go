package jobs

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mverbeek/buurtlens/internal/cbs"
	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/logger"
)

// testLogger returns a logger that discards all output.
func testLogger() *logger.Logger {
	return logger.New(&logger.Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

// fakeJobStore is an in-memory JobStore. It records update snapshots so
// tests can assert on the exact sequence of persisted writes.
type fakeJobStore struct {
	mu      sync.Mutex
	jobs    map[string]*domain.BatchJob
	pending []string

	addErr       error
	updateErr    error
	claimErr     error
	getStatusErr error

	updateCount    int
	guardedUpdates int
	// statusOverride, when set, is what GetStatus reports regardless of the
	// stored job. Used to simulate an operator cancelling mid-run.
	statusOverride *domain.BatchJobStatus
	// cancelAfterPolls flips GetStatus to failed after this many polls.
	cancelAfterPolls int
	polls            int
	// cancelBeforeStart simulates a cancellation racing the claim: the claimed
	// copy reports processing while the stored row is already failed.
	cancelBeforeStart bool
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*domain.BatchJob)}
}

func (s *fakeJobStore) Add(ctx context.Context, job *domain.BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	copied := *job
	s.jobs[job.ID] = &copied
	if job.Status == domain.JobStatusPending {
		s.pending = append(s.pending, job.ID)
	}
	return nil
}

func (s *fakeJobStore) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %q not found", id)
	}
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) GetNextPending(ctx context.Context) (*domain.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	if len(s.pending) == 0 {
		return nil, nil
	}
	id := s.pending[0]
	s.pending = s.pending[1:]
	job := s.jobs[id]
	job.Status = domain.JobStatusProcessing
	copied := *job
	if s.cancelBeforeStart {
		job.Status = domain.JobStatusFailed
	}
	return &copied, nil
}

func (s *fakeJobStore) GetStatus(ctx context.Context, id string) (domain.BatchJobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getStatusErr != nil {
		return "", s.getStatusErr
	}
	s.polls++
	if s.cancelAfterPolls > 0 && s.polls > s.cancelAfterPolls {
		return domain.JobStatusFailed, nil
	}
	if s.statusOverride != nil {
		return *s.statusOverride, nil
	}
	job, ok := s.jobs[id]
	if !ok {
		return "", fmt.Errorf("job %q not found", id)
	}
	return job.Status, nil
}

func (s *fakeJobStore) Update(ctx context.Context, job *domain.BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updateCount++
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// UpdateIfProcessing consults the stored row only, never statusOverride, so
// tests can make the status poll and the guarded write disagree.
func (s *fakeJobStore) UpdateIfProcessing(ctx context.Context, job *domain.BatchJob) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return false, s.updateErr
	}
	stored, ok := s.jobs[job.ID]
	if !ok {
		return false, fmt.Errorf("job %q not found", job.ID)
	}
	if stored.Status != domain.JobStatusProcessing {
		return false, nil
	}
	s.guardedUpdates++
	stored.Progress = job.Progress
	stored.LogLines = append(domain.StringArray(nil), job.LogLines...)
	return true, nil
}

// childJobs returns the stored jobs created through Add with the given type.
func (s *fakeJobStore) childJobs(jobType domain.BatchJobType) []*domain.BatchJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var children []*domain.BatchJob
	for _, job := range s.jobs {
		if job.Type == jobType {
			children = append(children, job)
		}
	}
	return children
}

// fakeNeighborhoodStore records batched writes.
type fakeNeighborhoodStore struct {
	mu       sync.Mutex
	existing []domain.Neighborhood

	addCalls    [][]*domain.Neighborhood
	updateCalls [][]*domain.Neighborhood
	addErr      error
}

func (s *fakeNeighborhoodStore) GetByCity(ctx context.Context, city string) ([]domain.Neighborhood, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Neighborhood(nil), s.existing...), nil
}

func (s *fakeNeighborhoodStore) AddRange(ctx context.Context, neighborhoods []*domain.Neighborhood) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.addCalls = append(s.addCalls, append([]*domain.Neighborhood(nil), neighborhoods...))
	return nil
}

func (s *fakeNeighborhoodStore) UpdateRange(ctx context.Context, neighborhoods []*domain.Neighborhood) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls = append(s.updateCalls, append([]*domain.Neighborhood(nil), neighborhoods...))
	return nil
}

func (s *fakeNeighborhoodStore) added() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, batch := range s.addCalls {
		n += len(batch)
	}
	return n
}

func (s *fakeNeighborhoodStore) updated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, batch := range s.updateCalls {
		n += len(batch)
	}
	return n
}

// fakeGeoClient serves canned geography.
type fakeGeoClient struct {
	municipalities []string
	neighborhoods  map[string][]cbs.NeighborhoodGeometry

	municipalitiesErr error
	neighborhoodsErr  error
}

func (c *fakeGeoClient) Municipalities(ctx context.Context) ([]string, error) {
	if c.municipalitiesErr != nil {
		return nil, c.municipalitiesErr
	}
	return c.municipalities, nil
}

func (c *fakeGeoClient) NeighborhoodsByMunicipality(ctx context.Context, municipality string) ([]cbs.NeighborhoodGeometry, error) {
	if c.neighborhoodsErr != nil {
		return nil, c.neighborhoodsErr
	}
	return c.neighborhoods[municipality], nil
}

// fakeStatsClient serves canned demographics.
type fakeStatsClient struct {
	stats map[string]*cbs.NeighborhoodStats
	err   error
}

func (c *fakeStatsClient) Stats(ctx context.Context, regionCode string) (*cbs.NeighborhoodStats, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stats[regionCode], nil
}

// fakeCrimeClient serves canned crime figures.
type fakeCrimeClient struct {
	stats map[string]*cbs.CrimeStats
	err   error
}

func (c *fakeCrimeClient) CrimeStats(ctx context.Context, regionCode string) (*cbs.CrimeStats, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stats[regionCode], nil
}

// stubProcessor runs a canned function for a fixed type.
type stubProcessor struct {
	jobType domain.BatchJobType
	fn      func(ctx context.Context, job *domain.BatchJob) error
}

func (p *stubProcessor) Type() domain.BatchJobType { return p.jobType }

func (p *stubProcessor) Process(ctx context.Context, job *domain.BatchJob) error {
	if p.fn == nil {
		return nil
	}
	return p.fn(ctx, job)
}
