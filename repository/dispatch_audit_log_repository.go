package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-hub/models"
	"gorm.io/gorm"
)

// DispatchAuditLogRepositoryImpl implements DispatchAuditLogRepository
type DispatchAuditLogRepositoryImpl struct {
	*BaseRepository[models.DispatchAuditLog, models.DispatchAuditLogFilter]
}

func NewDispatchAuditLogRepository(db *gorm.DB) DispatchAuditLogRepository {
	return &DispatchAuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DispatchAuditLog, models.DispatchAuditLogFilter](db),
	}
}

func (r *DispatchAuditLogRepositoryImpl) Save(ctx context.Context, entry *models.DispatchAuditLog) error {
	return r.BaseRepository.Save(ctx, entry)
}

func (r *DispatchAuditLogRepositoryImpl) ByFilter(ctx context.Context, filter models.DispatchAuditLogFilter, orderBy string, limit, offset int) ([]*models.DispatchAuditLog, error) {
	query := r.getDB(ctx).Model(&models.DispatchAuditLog{})
	if filter.DispatchID != nil {
		query = query.Where("dispatch_id = ?", *filter.DispatchID)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	if orderBy == "" {
		orderBy = "created_at DESC, id DESC"
	}

	var rows []*models.DispatchAuditLog
	if err := paginate(query, orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list dispatch audit logs: %w", err)
	}
	return rows, nil
}
