package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-hub/models"
	"gorm.io/gorm"
)

// BlogPostRepositoryImpl implements BlogPostRepository
type BlogPostRepositoryImpl struct {
	*BaseRepository[models.BlogPost, any]
}

func NewBlogPostRepository(db *gorm.DB) BlogPostRepository {
	return &BlogPostRepositoryImpl{BaseRepository: NewBaseRepository[models.BlogPost, any](db)}
}

func (r *BlogPostRepositoryImpl) Save(ctx context.Context, post *models.BlogPost) error {
	return r.BaseRepository.Save(ctx, post)
}

func (r *BlogPostRepositoryImpl) Delete(ctx context.Context, id uint) error {
	if err := r.getDB(ctx).Delete(&models.BlogPost{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete blog post: %w", err)
	}
	return nil
}
