package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/campaign-hub/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DispatchRepositoryImpl implements DispatchRepository
type DispatchRepositoryImpl struct {
	*BaseRepository[models.Dispatch, models.DispatchFilter]
}

func NewDispatchRepository(db *gorm.DB) DispatchRepository {
	return &DispatchRepositoryImpl{BaseRepository: NewBaseRepository[models.Dispatch, models.DispatchFilter](db)}
}

func (r *DispatchRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Dispatch, error) {
	row, err := first[models.Dispatch](r.getDB(ctx).Where("uuid = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to find dispatch by uuid: %w", err)
	}
	return row, nil
}

func (r *DispatchRepositoryImpl) ByExternalGroupID(ctx context.Context, externalGroupID string) (*models.Dispatch, error) {
	row, err := first[models.Dispatch](r.getDB(ctx).Where("external_group_id = ?", externalGroupID).Order("id DESC"))
	if err != nil {
		return nil, fmt.Errorf("failed to find dispatch by external group id: %w", err)
	}
	return row, nil
}

// ListDue returns scheduled, non-deleted dispatches whose time has come, oldest first
func (r *DispatchRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Dispatch, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []*models.Dispatch
	err := r.getDB(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ? AND deleted_at IS NULL", models.DispatchStatusScheduled, now).
		Order("scheduled_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due dispatches: %w", err)
	}
	return rows, nil
}

// TransitionStatus is a compare-and-swap on status. Zero affected rows means
// another writer moved the dispatch first.
func (r *DispatchRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from, to models.DispatchStatus, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	updates["updated_at"] = gorm.Expr("CURRENT_TIMESTAMP")

	res := r.getDB(ctx).Model(&models.Dispatch{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition dispatch %d from %s to %s: %w", id, from, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ClaimDue moves a dispatch that is still scheduled, due and live to sending and
// returns the row as it stands after the claim. A nil row means the claim lost.
func (r *DispatchRepositoryImpl) ClaimDue(ctx context.Context, id uint, now time.Time) (*models.Dispatch, error) {
	var rows []models.Dispatch
	res := r.getDB(ctx).Model(&rows).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ? AND deleted_at IS NULL",
			id, models.DispatchStatusScheduled, now).
		UpdateColumns(map[string]any{
			"status":     models.DispatchStatusSending,
			"claimed_at": now,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim dispatch %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *DispatchRepositoryImpl) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = gorm.Expr("CURRENT_TIMESTAMP")
	if err := r.getDB(ctx).Model(&models.Dispatch{}).Where("id = ?", id).UpdateColumns(updates).Error; err != nil {
		return fmt.Errorf("failed to update dispatch %d: %w", id, err)
	}
	return nil
}

func (r *DispatchRepositoryImpl) SetMediaHandle(ctx context.Context, id uint, handle string) error {
	return r.UpdateFields(ctx, id, map[string]any{"media_handle": handle})
}

func (r *DispatchRepositoryImpl) applyFilter(db *gorm.DB, f models.DispatchFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.BatchGroupID != nil {
		db = db.Where("batch_group_id = ?", *f.BatchGroupID)
	}
	if f.HubContentID != nil {
		db = db.Where("hub_content_id = ?", *f.HubContentID)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if !f.IncludeDeleted {
		db = db.Where("deleted_at IS NULL")
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *DispatchRepositoryImpl) ByFilter(ctx context.Context, filter models.DispatchFilter, orderBy string, limit, offset int) ([]*models.Dispatch, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.Dispatch{}), filter), orderBy, limit, offset)
	var rows []*models.Dispatch
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list dispatches: %w", err)
	}
	return rows, nil
}

func (r *DispatchRepositoryImpl) Count(ctx context.Context, filter models.DispatchFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Dispatch{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count dispatches: %w", err)
	}
	return count, nil
}

func (r *DispatchRepositoryImpl) Exists(ctx context.Context, filter models.DispatchFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
