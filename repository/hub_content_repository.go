package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amirphl/campaign-hub/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HubContentRepositoryImpl implements HubContentRepository
type HubContentRepositoryImpl struct {
	*BaseRepository[models.HubContent, any]
}

func NewHubContentRepository(db *gorm.DB) HubContentRepository {
	return &HubContentRepositoryImpl{BaseRepository: NewBaseRepository[models.HubContent, any](db)}
}

func (r *HubContentRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.HubContent, error) {
	row, err := first[models.HubContent](r.getDB(ctx).Where("uuid = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to find hub content by uuid: %w", err)
	}
	return row, nil
}

func (r *HubContentRepositoryImpl) Save(ctx context.Context, hub *models.HubContent) error {
	return r.BaseRepository.Save(ctx, hub)
}

func (r *HubContentRepositoryImpl) SoftDelete(ctx context.Context, id uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Delete(&models.HubContent{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete hub content: %w", err)
		}
		return nil
	})
}

// MergeChannelStatus rewrites a single key of channel_status with jsonb ||, so
// concurrent syncs for different channels never overwrite each other.
func (r *HubContentRepositoryImpl) MergeChannelStatus(ctx context.Context, id uint, channel string, entry models.ChannelStatusEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode channel status: %w", err)
	}

	res := r.getDB(ctx).Model(&models.HubContent{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"channel_status": gorm.Expr(
				"COALESCE(channel_status, '{}'::jsonb) || jsonb_build_object(?::text, ?::jsonb || jsonb_strip_nulls(jsonb_build_object('created_at', channel_status -> ? -> 'created_at')))",
				channel, string(raw), channel,
			),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to merge channel status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *HubContentRepositoryImpl) SetBlogPostIDIfNull(ctx context.Context, id uint, blogPostID uint) (bool, error) {
	res := r.getDB(ctx).Model(&models.HubContent{}).
		Where("id = ? AND blog_post_id IS NULL", id).
		UpdateColumns(map[string]any{
			"blog_post_id": blogPostID,
			"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to link blog post: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
