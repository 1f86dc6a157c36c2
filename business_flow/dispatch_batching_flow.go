package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DispatchBatchingFlow turns one message and a recipient list into chunked dispatches
type DispatchBatchingFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateDispatchCampaignRequest, metadata *ClientMetadata) (*dto.CreateDispatchCampaignResponse, error)
}

// DispatchBatchingFlowImpl implements the batching business flow
type DispatchBatchingFlowImpl struct {
	dispatchRepo repository.DispatchRepository
	hubRepo      repository.HubContentRepository
	auditRepo    repository.DispatchAuditLogRepository
	db           *gorm.DB
	chunkSize    int
}

// NewDispatchBatchingFlow creates a new batching flow instance
func NewDispatchBatchingFlow(
	dispatchRepo repository.DispatchRepository,
	hubRepo repository.HubContentRepository,
	auditRepo repository.DispatchAuditLogRepository,
	db *gorm.DB,
) DispatchBatchingFlow {
	return &DispatchBatchingFlowImpl{
		dispatchRepo: dispatchRepo,
		hubRepo:      hubRepo,
		auditRepo:    auditRepo,
		db:           db,
		chunkSize:    utils.MaxBatchSize,
	}
}

// ChunkRecipients splits recipients into consecutive slices of at most size entries.
// Order is preserved and the last chunk holds the remainder.
func ChunkRecipients(recipients []string, size int) [][]string {
	if size <= 0 {
		size = utils.MaxBatchSize
	}
	if len(recipients) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := min(start+size, len(recipients))
		chunk := make([]string, end-start)
		copy(chunk, recipients[start:end])
		chunks = append(chunks, chunk)
	}
	return chunks
}

// CreateCampaign validates the payload and persists one dispatch per recipient chunk.
// All dispatches share a batch group id and are written in a single transaction.
func (f *DispatchBatchingFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateDispatchCampaignRequest, metadata *ClientMetadata) (*dto.CreateDispatchCampaignResponse, error) {
	channel := models.ChannelType(strings.ToLower(strings.TrimSpace(req.Channel)))
	if !channel.Valid() {
		return nil, NewBusinessErrorf("CHANNEL_INVALID", "Unsupported channel %q", ErrChannelInvalid, req.Channel)
	}

	recipients := normalizeRecipients(req.Recipients)
	if len(recipients) == 0 {
		return nil, NewBusinessError("RECIPIENTS_REQUIRED", "At least one recipient is required", ErrRecipientsRequired)
	}

	opts := toChannelOptions(req.Options)
	mediaRef := req.MediaRef
	if mediaRef != nil && strings.TrimSpace(*mediaRef) == "" {
		mediaRef = nil
	}
	if mediaRef != nil && !channel.SupportsMedia() {
		return nil, NewBusinessErrorf("PAYLOAD_INVALID", "Channel %s does not carry media", ErrPayloadInvalid, channel)
	}
	if _, err := models.NewChannelPayload(channel, req.MessageText, mediaRef, opts); err != nil {
		return nil, NewBusinessError("PAYLOAD_INVALID", err.Error(), fmt.Errorf("%w: %v", ErrPayloadInvalid, err))
	}

	if req.HubContentID != nil {
		hub, err := f.hubRepo.ByID(ctx, *req.HubContentID)
		if err != nil {
			return nil, NewBusinessError("HUB_LOOKUP_FAILED", "Failed to lookup hub content", err)
		}
		if hub == nil {
			return nil, NewBusinessError("HUB_CONTENT_NOT_FOUND", "Hub content not found", ErrHubContentNotFound)
		}
	}

	status := models.DispatchStatusDraft
	var scheduledAt *time.Time
	if req.ScheduledAt != nil {
		status = models.DispatchStatusScheduled
		scheduledAt = utils.TimeToUTCPtr(req.ScheduledAt)
	}

	batchGroupID := uuid.New()
	chunks := ChunkRecipients(recipients, f.chunkSize)
	dispatches := make([]*models.Dispatch, 0, len(chunks))
	for i, chunk := range chunks {
		dispatches = append(dispatches, &models.Dispatch{
			UUID:               uuid.New(),
			BatchGroupID:       batchGroupID,
			HubContentID:       req.HubContentID,
			Channel:            channel,
			ChunkIndex:         i,
			RecipientNumbers:   chunk,
			MessageText:        req.MessageText,
			ChannelOptions:     opts,
			MediaRef:           mediaRef,
			ScheduledAt:        scheduledAt,
			Status:             status,
			PerRecipientResult: models.RecipientResultMap{},
		})
	}

	err := runInTx(ctx, f.db, func(txCtx context.Context) error {
		if err := f.dispatchRepo.SaveBatch(txCtx, dispatches); err != nil {
			return err
		}
		for _, d := range dispatches {
			entry := DispatchAuditEntry{
				DispatchID: d.ID,
				Action:     models.DispatchActionCreated,
				To:         d.Status,
				Metadata: map[string]any{
					"batch_group_id": batchGroupID.String(),
					"chunk_index":    d.ChunkIndex,
					"recipients":     len(d.RecipientNumbers),
				},
			}
			if err := f.auditRepo.Save(txCtx, NewDispatchAuditLog(txCtx, entry, metadata)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("DISPATCH_CREATE_FAILED", "Failed to create dispatches", err)
	}

	out := make([]dto.DispatchResponse, 0, len(dispatches))
	for _, d := range dispatches {
		out = append(out, ToDispatchDTO(d, false))
	}
	return &dto.CreateDispatchCampaignResponse{
		Message:         fmt.Sprintf("Created %d dispatches", len(dispatches)),
		BatchGroupID:    batchGroupID.String(),
		TotalRecipients: len(recipients),
		Dispatches:      out,
	}, nil
}

// normalizeRecipients trims numbers and drops blanks. Duplicates are kept so
// chunk composition matches the caller's list.
func normalizeRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func toChannelOptions(in *dto.ChannelOptionsDTO) models.ChannelOptions {
	if in == nil {
		return models.ChannelOptions{}
	}
	opts := models.ChannelOptions{
		Subject:       in.Subject,
		TemplateCode:  in.TemplateCode,
		FallbackToSMS: in.FallbackToSMS,
	}
	for _, b := range in.Buttons {
		opts.Buttons = append(opts.Buttons, models.KakaoButton{Name: b.Name, URL: b.URL})
	}
	return opts
}
