package models

import (
	"time"

	"github.com/google/uuid"
)

type BlogPostStatus string

const (
	BlogPostStatusDraft     BlogPostStatus = "draft"
	BlogPostStatusPublished BlogPostStatus = "published"
)

// BlogPost is the long-form companion of a hub content item.
// Only draft creation happens here; publishing lives elsewhere.
type BlogPost struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_blog_posts_uuid" json:"uuid"`
	HubContentID uint           `gorm:"not null;index:idx_blog_posts_hub_content_id" json:"hub_content_id"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	Slug         string         `gorm:"size:255;not null" json:"slug"`
	Body         string         `gorm:"type:text;not null;default:''" json:"body"`
	Status       BlogPostStatus `gorm:"size:20;not null;default:'draft'" json:"status"`
	CreatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (BlogPost) TableName() string { return "blog_posts" }
