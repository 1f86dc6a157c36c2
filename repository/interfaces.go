// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/campaign-hub/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// ShortLinkRepository defines operations for short links
type ShortLinkRepository interface {
	Repository[models.ShortLink, models.ShortLinkFilter]
	ByCode(ctx context.Context, code string) (*models.ShortLink, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	IncrementClickCount(ctx context.Context, id uint) error
	ListCodes(ctx context.Context, afterID uint, limit int) ([]string, uint, error)
}

// CampaignMetricRepository defines operations for per-campaign engagement counters
type CampaignMetricRepository interface {
	ByCampaignID(ctx context.Context, campaignID string) (*models.CampaignMetric, error)
	// Increment adds one to column, creating the row when it does not exist yet.
	Increment(ctx context.Context, campaignID string, column string) error
}

// PageViewEventRepository defines operations for raw page view events
type PageViewEventRepository interface {
	Save(ctx context.Context, event *models.PageViewEvent) error
	ExistsVisitor(ctx context.Context, campaignID, visitorKey string) (bool, error)
	CountByCampaign(ctx context.Context, campaignID string) (int64, error)
}

// HubContentRepository defines operations for hub content items
type HubContentRepository interface {
	ByID(ctx context.Context, id uint) (*models.HubContent, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.HubContent, error)
	Save(ctx context.Context, hub *models.HubContent) error
	SoftDelete(ctx context.Context, id uint) error
	// MergeChannelStatus replaces channel_status[channel] keeping its original created_at.
	MergeChannelStatus(ctx context.Context, id uint, channel string, entry models.ChannelStatusEntry) error
	// SetBlogPostIDIfNull links a blog post only when none is linked. It reports whether the row changed.
	SetBlogPostIDIfNull(ctx context.Context, id uint, blogPostID uint) (bool, error)
}

// BlogPostRepository defines operations for draft blog posts
type BlogPostRepository interface {
	ByID(ctx context.Context, id uint) (*models.BlogPost, error)
	Save(ctx context.Context, post *models.BlogPost) error
	Delete(ctx context.Context, id uint) error
}

// DispatchRepository defines operations for dispatches
type DispatchRepository interface {
	Repository[models.Dispatch, models.DispatchFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Dispatch, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Dispatch, error)
	// TransitionStatus moves a dispatch from one status to another only when it
	// is still in the expected status. It reports whether the row changed.
	TransitionStatus(ctx context.Context, id uint, from, to models.DispatchStatus, fields map[string]any) (bool, error)
	// ClaimDue moves a still-due scheduled dispatch to sending and returns the
	// claimed row, or nil when it is no longer scheduled, due or live.
	ClaimDue(ctx context.Context, id uint, now time.Time) (*models.Dispatch, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	SetMediaHandle(ctx context.Context, id uint, handle string) error
	ByExternalGroupID(ctx context.Context, externalGroupID string) (*models.Dispatch, error)
}

// DispatchAuditLogRepository defines operations for dispatch audit logs
type DispatchAuditLogRepository interface {
	Save(ctx context.Context, entry *models.DispatchAuditLog) error
	ByFilter(ctx context.Context, filter models.DispatchAuditLogFilter, orderBy string, limit, offset int) ([]*models.DispatchAuditLog, error)
}

// DeliveryStatusJobRepository defines operations for planned delivery status reads
type DeliveryStatusJobRepository interface {
	SaveBatch(ctx context.Context, jobs []*models.DeliveryStatusJob) error
	ListDue(ctx context.Context, now time.Time, maxRetries, limit int) ([]*models.DeliveryStatusJob, error)
	Update(ctx context.Context, job *models.DeliveryStatusJob) error
}

// MediaHandleRepository defines operations for cached gateway media handles
type MediaHandleRepository interface {
	BySource(ctx context.Context, sourceURL string, channel models.ChannelType) (*models.MediaHandle, error)
	// SaveIfAbsent stores the handle unless another writer stored one first, and returns the winning row.
	SaveIfAbsent(ctx context.Context, handle *models.MediaHandle) (*models.MediaHandle, error)
}

// MultimediaAssetRepository defines operations for stored media assets
type MultimediaAssetRepository interface {
	ByUUID(ctx context.Context, id uuid.UUID) (*models.MultimediaAsset, error)
	Save(ctx context.Context, asset *models.MultimediaAsset) error
}
