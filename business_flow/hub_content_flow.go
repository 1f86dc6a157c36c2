package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/google/uuid"
)

// HubContentFlow handles the lifecycle of hub content items
type HubContentFlow interface {
	CreateHubContent(ctx context.Context, req *dto.CreateHubContentRequest) (*dto.HubContentResponse, error)
	GetHubContent(ctx context.Context, id uint) (*dto.HubContentResponse, error)
	DeleteHubContent(ctx context.Context, id uint) error
}

// HubContentFlowImpl implements the hub content business flow
type HubContentFlowImpl struct {
	hubRepo repository.HubContentRepository
}

func NewHubContentFlow(hubRepo repository.HubContentRepository) HubContentFlow {
	return &HubContentFlowImpl{hubRepo: hubRepo}
}

func (f *HubContentFlowImpl) CreateHubContent(ctx context.Context, req *dto.CreateHubContentRequest) (*dto.HubContentResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, NewBusinessError("TITLE_REQUIRED", "Title is required", ErrPayloadInvalid)
	}
	hub := &models.HubContent{
		UUID:          uuid.New(),
		Title:         title,
		ChannelStatus: models.ChannelStatusMap{},
	}
	if err := f.hubRepo.Save(ctx, hub); err != nil {
		return nil, NewBusinessError("HUB_CREATE_FAILED", "Failed to create hub content", err)
	}
	out := ToHubContentDTO(hub)
	return &out, nil
}

func (f *HubContentFlowImpl) GetHubContent(ctx context.Context, id uint) (*dto.HubContentResponse, error) {
	hub, err := f.hubRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("HUB_LOOKUP_FAILED", "Failed to lookup hub content", err)
	}
	if hub == nil {
		return nil, NewBusinessError("HUB_CONTENT_NOT_FOUND", "Hub content not found", ErrHubContentNotFound)
	}
	out := ToHubContentDTO(hub)
	return &out, nil
}

// DeleteHubContent soft deletes the hub. Dispatches keep their hub reference.
func (f *HubContentFlowImpl) DeleteHubContent(ctx context.Context, id uint) error {
	hub, err := f.hubRepo.ByID(ctx, id)
	if err != nil {
		return NewBusinessError("HUB_LOOKUP_FAILED", "Failed to lookup hub content", err)
	}
	if hub == nil {
		return NewBusinessError("HUB_CONTENT_NOT_FOUND", "Hub content not found", ErrHubContentNotFound)
	}
	if err := f.hubRepo.SoftDelete(ctx, id); err != nil {
		return NewBusinessError("HUB_DELETE_FAILED", "Failed to delete hub content", err)
	}
	return nil
}
