package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/campaign-hub/models"
	"gorm.io/gorm"
)

// DeliveryStatusJobRepositoryImpl implements DeliveryStatusJobRepository
type DeliveryStatusJobRepositoryImpl struct {
	*BaseRepository[models.DeliveryStatusJob, any]
}

func NewDeliveryStatusJobRepository(db *gorm.DB) DeliveryStatusJobRepository {
	return &DeliveryStatusJobRepositoryImpl{BaseRepository: NewBaseRepository[models.DeliveryStatusJob, any](db)}
}

// ListDue returns unexecuted jobs scheduled at or before now that still have retries left
func (r *DeliveryStatusJobRepositoryImpl) ListDue(ctx context.Context, now time.Time, maxRetries, limit int) ([]*models.DeliveryStatusJob, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []*models.DeliveryStatusJob
	err := r.getDB(ctx).
		Where("scheduled_at <= ? AND retry_count < ? AND executed_at IS NULL", now, maxRetries).
		Order("scheduled_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due delivery status jobs: %w", err)
	}
	return rows, nil
}

func (r *DeliveryStatusJobRepositoryImpl) SaveBatch(ctx context.Context, jobs []*models.DeliveryStatusJob) error {
	return r.BaseRepository.SaveBatch(ctx, jobs)
}

func (r *DeliveryStatusJobRepositoryImpl) Update(ctx context.Context, job *models.DeliveryStatusJob) error {
	if err := r.getDB(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to update delivery status job %d: %w", job.ID, err)
	}
	return nil
}
