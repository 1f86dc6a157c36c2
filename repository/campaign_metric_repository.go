package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-hub/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignMetricRepositoryImpl implements CampaignMetricRepository
type CampaignMetricRepositoryImpl struct {
	*BaseRepository[models.CampaignMetric, any]
}

func NewCampaignMetricRepository(db *gorm.DB) CampaignMetricRepository {
	return &CampaignMetricRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignMetric, any](db)}
}

func (r *CampaignMetricRepositoryImpl) ByCampaignID(ctx context.Context, campaignID string) (*models.CampaignMetric, error) {
	row, err := first[models.CampaignMetric](r.getDB(ctx).Where("campaign_id = ?", campaignID))
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign metric: %w", err)
	}
	return row, nil
}

// Increment upserts the metric row: a fresh row starts at one, an existing
// row gets column = column + 1 inside the same INSERT ... ON CONFLICT.
func (r *CampaignMetricRepositoryImpl) Increment(ctx context.Context, campaignID string, column string) error {
	if !models.IsMetricColumn(column) {
		return fmt.Errorf("unknown metric column %q", column)
	}

	row := map[string]any{
		"campaign_id": campaignID,
		column:        1,
	}
	err := r.getDB(ctx).Model(&models.CampaignMetric{}).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				column:       gorm.Expr(fmt.Sprintf("campaign_metrics.%s + 1", column)),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	return nil
}
