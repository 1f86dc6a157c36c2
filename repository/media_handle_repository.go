package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-hub/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MediaHandleRepositoryImpl implements MediaHandleRepository
type MediaHandleRepositoryImpl struct {
	*BaseRepository[models.MediaHandle, any]
}

func NewMediaHandleRepository(db *gorm.DB) MediaHandleRepository {
	return &MediaHandleRepositoryImpl{BaseRepository: NewBaseRepository[models.MediaHandle, any](db)}
}

func (r *MediaHandleRepositoryImpl) BySource(ctx context.Context, sourceURL string, channel models.ChannelType) (*models.MediaHandle, error) {
	row, err := first[models.MediaHandle](r.getDB(ctx).Where("source_url = ? AND channel = ?", sourceURL, channel))
	if err != nil {
		return nil, fmt.Errorf("failed to find media handle: %w", err)
	}
	return row, nil
}

func (r *MediaHandleRepositoryImpl) SaveIfAbsent(ctx context.Context, handle *models.MediaHandle) (*models.MediaHandle, error) {
	err := r.getDB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_url"}, {Name: "channel"}},
			DoNothing: true,
		}).
		Create(handle).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save media handle: %w", err)
	}
	return r.BySource(ctx, handle.SourceURL, handle.Channel)
}
