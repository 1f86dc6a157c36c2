package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-hub/models"
	"gorm.io/gorm"
)

// ShortLinkRepositoryImpl implements ShortLinkRepository
type ShortLinkRepositoryImpl struct {
	*BaseRepository[models.ShortLink, models.ShortLinkFilter]
}

func NewShortLinkRepository(db *gorm.DB) ShortLinkRepository {
	return &ShortLinkRepositoryImpl{BaseRepository: NewBaseRepository[models.ShortLink, models.ShortLinkFilter](db)}
}

func (r *ShortLinkRepositoryImpl) ByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	row, err := first[models.ShortLink](r.getDB(ctx).Where("code = ?", code))
	if err != nil {
		return nil, fmt.Errorf("failed to find short link by code: %w", err)
	}
	return row, nil
}

func (r *ShortLinkRepositoryImpl) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return r.Exists(ctx, models.ShortLinkFilter{Code: &code})
}

// IncrementClickCount bumps click_count in a single statement so concurrent
// resolves never lose an update.
func (r *ShortLinkRepositoryImpl) IncrementClickCount(ctx context.Context, id uint) error {
	res := r.getDB(ctx).Model(&models.ShortLink{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"click_count": gorm.Expr("click_count + ?", 1),
			"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to increment click count: %w", res.Error)
	}
	return nil
}

// ListCodes pages through all codes by id, returning the last id seen.
func (r *ShortLinkRepositoryImpl) ListCodes(ctx context.Context, afterID uint, limit int) ([]string, uint, error) {
	if limit <= 0 {
		limit = 1000
	}
	var rows []struct {
		ID   uint
		Code string
	}
	err := r.getDB(ctx).Model(&models.ShortLink{}).
		Select("id, code").
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, afterID, fmt.Errorf("failed to list short link codes: %w", err)
	}
	codes := make([]string, 0, len(rows))
	last := afterID
	for _, row := range rows {
		codes = append(codes, row.Code)
		last = row.ID
	}
	return codes, last, nil
}

func (r *ShortLinkRepositoryImpl) applyFilter(db *gorm.DB, f models.ShortLinkFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Code != nil {
		db = db.Where("code = ?", *f.Code)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ShortLinkRepositoryImpl) ByFilter(ctx context.Context, filter models.ShortLinkFilter, orderBy string, limit, offset int) ([]*models.ShortLink, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.ShortLink{}), filter), orderBy, limit, offset)
	var rows []*models.ShortLink
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ShortLinkRepositoryImpl) Count(ctx context.Context, filter models.ShortLinkFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.ShortLink{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ShortLinkRepositoryImpl) Exists(ctx context.Context, filter models.ShortLinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
