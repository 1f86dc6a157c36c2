package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-hub/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MultimediaAssetRepositoryImpl implements MultimediaAssetRepository
type MultimediaAssetRepositoryImpl struct {
	*BaseRepository[models.MultimediaAsset, any]
}

func NewMultimediaAssetRepository(db *gorm.DB) MultimediaAssetRepository {
	return &MultimediaAssetRepositoryImpl{BaseRepository: NewBaseRepository[models.MultimediaAsset, any](db)}
}

func (r *MultimediaAssetRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.MultimediaAsset, error) {
	row, err := first[models.MultimediaAsset](r.getDB(ctx).Where("uuid = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to find multimedia asset: %w", err)
	}
	return row, nil
}

func (r *MultimediaAssetRepositoryImpl) Save(ctx context.Context, asset *models.MultimediaAsset) error {
	return r.BaseRepository.Save(ctx, asset)
}
