package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mverbeek/buurtlens/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchJobRepository handles batch job persistence. It is the sole arbiter of
// the pending-to-processing claim.
type BatchJobRepository struct {
	db *gorm.DB
}

// NewBatchJobRepository creates a new BatchJobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *BatchJobRepository: repository instance bound to db.
func NewBatchJobRepository(db *gorm.DB) *BatchJobRepository {
	return &BatchJobRepository{db: db}
}

// Add persists a new batch job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist; CreatedAt is set when zero.
// Returns:
//   - error: non-nil if the insert fails.
func (r *BatchJobRepository) Add(ctx context.Context, job *domain.BatchJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a batch job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.BatchJob: job record if found.
//   - error: gorm.ErrRecordNotFound if absent, other non-nil on failure.
func (r *BatchJobRepository) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	var job domain.BatchJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetNextPending atomically claims the oldest pending job.
//
// The claim runs in a transaction: the oldest pending job is selected, then
// flipped to processing with a status-guarded update. A zero rows-affected
// result means a concurrent worker won the race, in which case no job is
// returned and the caller simply polls again.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *domain.BatchJob: claimed job in processing state, or nil when none pending.
//   - error: non-nil if the claim transaction fails.
func (r *BatchJobRepository) GetNextPending(ctx context.Context) (*domain.BatchJob, error) {
	var claimed *domain.BatchJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Where("status = ?", domain.JobStatusPending).
			Order("created_at ASC")
		// On postgres, lock the candidate row so concurrent workers do not
		// select the same job and waste an iteration losing the guarded
		// update. SQLite serializes writers and has no SKIP LOCKED.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var job domain.BatchJob
		if err := query.First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&domain.BatchJob{}).
			Where("id = ? AND status = ?", job.ID, domain.JobStatusPending).
			Updates(map[string]interface{}{
				"status":     domain.JobStatusProcessing,
				"started_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another worker claimed it first.
			return nil
		}

		job.Status = domain.JobStatusProcessing
		job.StartedAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// GetStatus reads only the status column of a job. Used by the cooperative
// cancellation poll, which runs frequently and must stay cheap.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - domain.BatchJobStatus: current persisted status.
//   - error: gorm.ErrRecordNotFound if absent, other non-nil on failure.
func (r *BatchJobRepository) GetStatus(ctx context.Context, id string) (domain.BatchJobStatus, error) {
	var status domain.BatchJobStatus
	err := r.db.WithContext(ctx).
		Model(&domain.BatchJob{}).
		Where("id = ?", id).
		Select("status").
		Take(&status).Error
	if err != nil {
		return "", err
	}
	return status, nil
}

// Update persists all fields of an existing job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *BatchJobRepository) Update(ctx context.Context, job *domain.BatchJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// UpdateIfProcessing persists a running job's progress and log only while the
// persisted status is still processing. A cancellation request flips the status
// to failed, and a full Save racing that flip would silently revert it. The
// status guard makes the checkpoint write lose that race instead.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record whose progress and log lines are persisted.
// Returns:
//   - bool: true if the row was still processing and was updated.
//   - error: non-nil if the update fails.
func (r *BatchJobRepository) UpdateIfProcessing(ctx context.Context, job *domain.BatchJob) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.BatchJob{}).
		Where("id = ? AND status = ?", job.ID, domain.JobStatusProcessing).
		Updates(map[string]interface{}{
			"progress":  job.Progress,
			"log_lines": job.LogLines,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Recent retrieves the most recently created jobs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.BatchJob: matching job records, newest first.
//   - error: non-nil if the query fails.
func (r *BatchJobRepository) Recent(ctx context.Context, limit int) ([]domain.BatchJob, error) {
	var jobs []domain.BatchJob
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListFilter narrows and orders a paged job listing.
type ListFilter struct {
	Status *domain.BatchJobStatus
	Type   *domain.BatchJobType
	Search string
	Sort   string
}

// List retrieves a page of jobs matching the filter.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - page: 1-based page index.
//   - pageSize: number of records per page.
//   - filter: optional status/type/search/sort narrowing.
// Returns:
//   - []domain.BatchJob: the requested page.
//   - int64: total number of matching records.
//   - error: non-nil if the query fails.
func (r *BatchJobRepository) List(ctx context.Context, page, pageSize int, filter ListFilter) ([]domain.BatchJob, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&domain.BatchJob{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if search := filter.Search; search != "" {
		query = query.Where("target LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.Sort {
	case "created_at_asc":
		query = query.Order("created_at ASC")
	case "status_asc":
		query = query.Order("status ASC")
	case "status_desc":
		query = query.Order("status DESC")
	case "type_asc":
		query = query.Order("type ASC")
	case "type_desc":
		query = query.Order("type DESC")
	case "target_asc":
		query = query.Order("target ASC")
	case "target_desc":
		query = query.Order("target DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var jobs []domain.BatchJob
	if err := query.
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// CountByStatus counts jobs by status. Used by the queue depth gauge.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: job status to count.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *BatchJobRepository) CountByStatus(ctx context.Context, status domain.BatchJobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.BatchJob{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
