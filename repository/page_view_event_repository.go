package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-hub/models"
	"gorm.io/gorm"
)

// PageViewEventRepositoryImpl implements PageViewEventRepository
type PageViewEventRepositoryImpl struct {
	*BaseRepository[models.PageViewEvent, any]
}

func NewPageViewEventRepository(db *gorm.DB) PageViewEventRepository {
	return &PageViewEventRepositoryImpl{BaseRepository: NewBaseRepository[models.PageViewEvent, any](db)}
}

func (r *PageViewEventRepositoryImpl) Save(ctx context.Context, event *models.PageViewEvent) error {
	return r.BaseRepository.Save(ctx, event)
}

func (r *PageViewEventRepositoryImpl) ExistsVisitor(ctx context.Context, campaignID, visitorKey string) (bool, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.PageViewEvent{}).
		Where("campaign_id = ? AND visitor_key = ?", campaignID, visitorKey).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check visitor: %w", err)
	}
	return count > 0, nil
}

func (r *PageViewEventRepositoryImpl) CountByCampaign(ctx context.Context, campaignID string) (int64, error) {
	var count int64
	if err := r.getDB(ctx).Model(&models.PageViewEvent{}).Where("campaign_id = ?", campaignID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count page views: %w", err)
	}
	return count, nil
}
