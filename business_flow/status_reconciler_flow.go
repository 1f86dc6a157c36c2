package businessflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DispatchOutcome is the per-channel result merged into a hub's channel status map
type DispatchOutcome struct {
	Status     models.DispatchStatus
	ExternalID *string
}

// StatusReconcilerFlow keeps hub content in step with its dispatches
type StatusReconcilerFlow interface {
	SyncChannelStatus(ctx context.Context, hubContentID uint, channel models.ChannelType, outcome DispatchOutcome) error
	AttachDraftBlog(ctx context.Context, hubContentID uint) (*dto.AttachDraftBlogResponse, error)
}

// StatusReconcilerFlowImpl implements the status reconciler business flow
type StatusReconcilerFlowImpl struct {
	hubRepo  repository.HubContentRepository
	blogRepo repository.BlogPostRepository
	db       *gorm.DB
}

// NewStatusReconcilerFlow creates a new status reconciler instance
func NewStatusReconcilerFlow(
	hubRepo repository.HubContentRepository,
	blogRepo repository.BlogPostRepository,
	db *gorm.DB,
) StatusReconcilerFlow {
	return &StatusReconcilerFlowImpl{
		hubRepo:  hubRepo,
		blogRepo: blogRepo,
		db:       db,
	}
}

// SyncChannelStatus replaces the entry for one channel. Entries of other channels are left as they are.
func (f *StatusReconcilerFlowImpl) SyncChannelStatus(ctx context.Context, hubContentID uint, channel models.ChannelType, outcome DispatchOutcome) error {
	if !channel.Valid() {
		return NewBusinessErrorf("CHANNEL_INVALID", "Unsupported channel %q", ErrChannelInvalid, channel)
	}
	now := utils.UTCNow()
	entry := models.ChannelStatusEntry{
		Status:     models.ChannelStateFor(outcome.Status),
		ExternalID: outcome.ExternalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := WithStorageRetry(ctx, "merge channel status", func(ctx context.Context) error {
		return f.hubRepo.MergeChannelStatus(ctx, hubContentID, string(channel), entry)
	})
	if err != nil {
		if IsRecordNotFound(err) {
			return NewBusinessError("HUB_CONTENT_NOT_FOUND", "Hub content not found", ErrHubContentNotFound)
		}
		return NewBusinessError("CHANNEL_STATUS_SYNC_FAILED", "Failed to sync channel status", err)
	}
	return nil
}

// AttachDraftBlog links a new draft blog post to the hub unless one is already linked.
// A concurrent caller that loses the guarded update gets the winner's post id.
func (f *StatusReconcilerFlowImpl) AttachDraftBlog(ctx context.Context, hubContentID uint) (*dto.AttachDraftBlogResponse, error) {
	hub, err := f.hubRepo.ByID(ctx, hubContentID)
	if err != nil {
		return nil, NewBusinessError("HUB_LOOKUP_FAILED", "Failed to lookup hub content", err)
	}
	if hub == nil {
		return nil, NewBusinessError("HUB_CONTENT_NOT_FOUND", "Hub content not found", ErrHubContentNotFound)
	}
	if hub.BlogPostID != nil {
		return &dto.AttachDraftBlogResponse{HubContentID: hub.ID, BlogPostID: *hub.BlogPostID}, nil
	}

	var (
		post    *models.BlogPost
		created bool
	)
	err = runInTx(ctx, f.db, func(txCtx context.Context) error {
		post = &models.BlogPost{
			UUID:         uuid.New(),
			HubContentID: hub.ID,
			Title:        hub.Title,
			Slug:         blogSlug(hub.Title, hub.UUID),
			Status:       models.BlogPostStatusDraft,
		}
		if err := f.blogRepo.Save(txCtx, post); err != nil {
			return err
		}
		ok, err := f.hubRepo.SetBlogPostIDIfNull(txCtx, hub.ID, post.ID)
		if err != nil {
			return err
		}
		if !ok {
			return f.blogRepo.Delete(txCtx, post.ID)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("ATTACH_BLOG_FAILED", "Failed to attach draft blog", err)
	}
	if created {
		return &dto.AttachDraftBlogResponse{HubContentID: hub.ID, BlogPostID: post.ID, Created: true}, nil
	}

	hub, err = f.hubRepo.ByID(ctx, hubContentID)
	if err != nil {
		return nil, NewBusinessError("HUB_LOOKUP_FAILED", "Failed to lookup hub content", err)
	}
	if hub == nil || hub.BlogPostID == nil {
		return nil, NewBusinessError("ATTACH_BLOG_FAILED", "Hub changed while attaching blog", ErrHubContentNotFound)
	}
	return &dto.AttachDraftBlogResponse{HubContentID: hub.ID, BlogPostID: *hub.BlogPostID}, nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

func blogSlug(title string, hubUUID uuid.UUID) string {
	base := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(base) > 200 {
		base = strings.TrimRight(base[:200], "-")
	}
	suffix := strings.ReplaceAll(hubUUID.String(), "-", "")[:8]
	if base == "" {
		return fmt.Sprintf("post-%s", suffix)
	}
	return fmt.Sprintf("%s-%s", base, suffix)
}
