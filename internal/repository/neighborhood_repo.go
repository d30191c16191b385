package repository

import (
	"context"
	"time"

	"github.com/mverbeek/buurtlens/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NeighborhoodRepository handles neighborhood persistence. Records are
// upserted by their natural CBS code and never deleted by this subsystem.
type NeighborhoodRepository struct {
	db *gorm.DB
}

// NewNeighborhoodRepository creates a new NeighborhoodRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *NeighborhoodRepository: repository instance bound to db.
func NewNeighborhoodRepository(db *gorm.DB) *NeighborhoodRepository {
	return &NeighborhoodRepository{db: db}
}

// GetByCode retrieves a neighborhood by its CBS code.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - code: natural key (buurtcode).
// Returns:
//   - *domain.Neighborhood: record if found.
//   - error: gorm.ErrRecordNotFound if absent, other non-nil on failure.
func (r *NeighborhoodRepository) GetByCode(ctx context.Context, code string) (*domain.Neighborhood, error) {
	var n domain.Neighborhood
	if err := r.db.WithContext(ctx).First(&n, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// GetByCity retrieves all neighborhoods of a city in one query, so ingestion
// can build a lookup instead of reading per item.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - city: municipality name.
// Returns:
//   - []domain.Neighborhood: matching records.
//   - error: non-nil if the query fails.
func (r *NeighborhoodRepository) GetByCity(ctx context.Context, city string) ([]domain.Neighborhood, error) {
	var neighborhoods []domain.Neighborhood
	if err := r.db.WithContext(ctx).
		Where("city = ?", city).
		Find(&neighborhoods).Error; err != nil {
		return nil, err
	}
	return neighborhoods, nil
}

// AddRange inserts a batch of new neighborhoods in one write. Conflicts on the
// natural code fall back to an update, which keeps re-ingestion idempotent.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - neighborhoods: records to insert.
// Returns:
//   - error: non-nil if the batched insert fails.
func (r *NeighborhoodRepository) AddRange(ctx context.Context, neighborhoods []*domain.Neighborhood) error {
	if len(neighborhoods) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		UpdateAll: true,
	}).Create(neighborhoods).Error
}

// UpdateRange persists a batch of modified neighborhoods in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - neighborhoods: records with updated fields.
// Returns:
//   - error: non-nil if the batched update fails.
func (r *NeighborhoodRepository) UpdateRange(ctx context.Context, neighborhoods []*domain.Neighborhood) error {
	if len(neighborhoods) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, n := range neighborhoods {
			n.UpdatedAt = now
			if err := tx.Save(n).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CountByCity counts the stored neighborhoods of a city.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - city: municipality name.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *NeighborhoodRepository) CountByCity(ctx context.Context, city string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Neighborhood{}).Where("city = ?", city).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
