package businessflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	defaultDispatchPageSize = 20
	maxDispatchPageSize     = 100
	maxAuditLogRows         = 500
)

// DispatchFlow handles authoring operations on existing dispatches
type DispatchFlow interface {
	GetDispatch(ctx context.Context, id uint) (*dto.DispatchResponse, error)
	ListDispatches(ctx context.Context, req *dto.ListDispatchesRequest) (*dto.ListDispatchesResponse, error)
	UpdateDispatch(ctx context.Context, id uint, req *dto.UpdateDispatchRequest, metadata *ClientMetadata) (*dto.DispatchResponse, error)
	RescheduleDispatch(ctx context.Context, id uint, req *dto.RescheduleDispatchRequest, metadata *ClientMetadata) (*dto.DispatchResponse, error)
	CancelDispatch(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.DispatchResponse, error)
	ListAuditLogs(ctx context.Context, id uint) ([]dto.DispatchAuditLogResponse, error)
	ExportResults(ctx context.Context, id uint) ([]byte, string, error)
}

// DispatchFlowImpl implements the dispatch authoring business flow
type DispatchFlowImpl struct {
	dispatchRepo repository.DispatchRepository
	auditRepo    repository.DispatchAuditLogRepository
	db           *gorm.DB
}

// NewDispatchFlow creates a new dispatch flow instance
func NewDispatchFlow(
	dispatchRepo repository.DispatchRepository,
	auditRepo repository.DispatchAuditLogRepository,
	db *gorm.DB,
) DispatchFlow {
	return &DispatchFlowImpl{
		dispatchRepo: dispatchRepo,
		auditRepo:    auditRepo,
		db:           db,
	}
}

func (f *DispatchFlowImpl) GetDispatch(ctx context.Context, id uint) (*dto.DispatchResponse, error) {
	d, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToDispatchDTO(d, true)
	return &out, nil
}

// ListDispatches returns a page of non-deleted dispatches, newest first
func (f *DispatchFlowImpl) ListDispatches(ctx context.Context, req *dto.ListDispatchesRequest) (*dto.ListDispatchesResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultDispatchPageSize
	}
	if limit < 1 || limit > maxDispatchPageSize {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	filter := models.DispatchFilter{HubContentID: req.HubContentID}
	if req.BatchGroupID != nil && *req.BatchGroupID != "" {
		id, err := uuid.Parse(*req.BatchGroupID)
		if err != nil {
			return nil, NewBusinessError("INVALID_BATCH_GROUP_ID", "Batch group id must be a uuid", err)
		}
		filter.BatchGroupID = &id
	}
	if req.Status != nil && *req.Status != "" {
		status := models.DispatchStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessErrorf("INVALID_STATUS", "Unknown status %q", ErrInvalidDispatchTransition, *req.Status)
		}
		filter.Status = &status
		filter.IncludeDeleted = status == models.DispatchStatusDeleted
	}
	if req.Channel != nil && *req.Channel != "" {
		channel := models.ChannelType(*req.Channel)
		if !channel.Valid() {
			return nil, NewBusinessErrorf("CHANNEL_INVALID", "Unsupported channel %q", ErrChannelInvalid, *req.Channel)
		}
		filter.Channel = &channel
	}

	total, err := f.dispatchRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LIST_FAILED", "Failed to count dispatches", err)
	}
	rows, err := f.dispatchRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LIST_FAILED", "Failed to list dispatches", err)
	}

	items := make([]dto.DispatchResponse, 0, len(rows))
	for _, d := range rows {
		items = append(items, ToDispatchDTO(d, false))
	}
	return &dto.ListDispatchesResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

// UpdateDispatch edits message text or media while the dispatch is draft or scheduled.
// A media change drops the cached gateway handle.
func (f *DispatchFlowImpl) UpdateDispatch(ctx context.Context, id uint, req *dto.UpdateDispatchRequest, metadata *ClientMetadata) (*dto.DispatchResponse, error) {
	if req.MessageText == nil && req.MediaRef == nil {
		return nil, NewBusinessError("UPDATE_REQUIRED", "Nothing to update", ErrDispatchUpdateRequired)
	}
	d, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Status.IsEditable() {
		return nil, NewBusinessErrorf("DISPATCH_NOT_EDITABLE", "Dispatch in status %s cannot be edited", ErrDispatchNotEditable, d.Status)
	}

	text := d.MessageText
	mediaRef := d.MediaRef
	fields := make(map[string]any, 3)
	changed := make([]string, 0, 2)
	if req.MessageText != nil && *req.MessageText != d.MessageText {
		text = *req.MessageText
		fields["message_text"] = text
		changed = append(changed, "message_text")
	}
	if req.MediaRef != nil && utils.DerefString(req.MediaRef) != utils.DerefString(d.MediaRef) {
		mediaRef = utils.NilIfEmpty(strings.TrimSpace(*req.MediaRef))
		if mediaRef != nil && !d.Channel.SupportsMedia() {
			return nil, NewBusinessErrorf("PAYLOAD_INVALID", "Channel %s does not carry media", ErrPayloadInvalid, d.Channel)
		}
		fields["media_ref"] = mediaRef
		fields["media_handle"] = nil
		changed = append(changed, "media_ref")
	}
	if len(fields) == 0 {
		out := ToDispatchDTO(d, true)
		return &out, nil
	}
	if _, err := models.NewChannelPayload(d.Channel, text, mediaRef, d.ChannelOptions); err != nil {
		return nil, NewBusinessError("PAYLOAD_INVALID", err.Error(), fmt.Errorf("%w: %v", ErrPayloadInvalid, err))
	}

	err = runInTx(ctx, f.db, func(txCtx context.Context) error {
		ok, err := f.dispatchRepo.TransitionStatus(txCtx, d.ID, d.Status, d.Status, fields)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDispatchNotEditable
		}
		entry := DispatchAuditEntry{
			DispatchID: d.ID,
			Action:     models.DispatchActionUpdated,
			From:       d.Status,
			To:         d.Status,
			Metadata:   map[string]any{"fields": changed},
		}
		return f.auditRepo.Save(txCtx, NewDispatchAuditLog(txCtx, entry, metadata))
	})
	if err != nil {
		if IsDispatchNotEditable(err) {
			return nil, NewBusinessError("DISPATCH_NOT_EDITABLE", "Dispatch changed status before the edit was applied", err)
		}
		return nil, NewBusinessError("DISPATCH_UPDATE_FAILED", "Failed to update dispatch", err)
	}
	return f.GetDispatch(ctx, id)
}

// RescheduleDispatch sets a new send time. Draft and failed dispatches move to scheduled;
// rescheduling a scheduled dispatch to the same instant is a no-op.
func (f *DispatchFlowImpl) RescheduleDispatch(ctx context.Context, id uint, req *dto.RescheduleDispatchRequest, metadata *ClientMetadata) (*dto.DispatchResponse, error) {
	if req.ScheduledAt.IsZero() {
		return nil, NewBusinessError("SCHEDULE_TIME_REQUIRED", "Schedule time is required", ErrScheduleTimeRequired)
	}
	at := req.ScheduledAt.UTC()

	d, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Status.CanTransitionTo(models.DispatchStatusScheduled) {
		return nil, NewBusinessErrorf("DISPATCH_NOT_RESCHEDULABLE", "Dispatch in status %s cannot be rescheduled", ErrDispatchNotReschedulable, d.Status)
	}
	if d.Status == models.DispatchStatusScheduled && d.ScheduledAt != nil && d.ScheduledAt.Equal(at) {
		out := ToDispatchDTO(d, true)
		return &out, nil
	}

	fields := map[string]any{"scheduled_at": at}
	if d.Status == models.DispatchStatusFailed {
		fields["last_error"] = nil
		fields["claimed_at"] = nil
		fields["external_group_id"] = nil
		fields["per_recipient_result"] = models.RecipientResultMap{}
	}

	err = runInTx(ctx, f.db, func(txCtx context.Context) error {
		ok, err := f.dispatchRepo.TransitionStatus(txCtx, d.ID, d.Status, models.DispatchStatusScheduled, fields)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDispatchNotReschedulable
		}
		entry := DispatchAuditEntry{
			DispatchID: d.ID,
			Action:     models.DispatchActionRescheduled,
			From:       d.Status,
			To:         models.DispatchStatusScheduled,
			Metadata: map[string]any{
				"previous_scheduled_at": formatTimePtr(d.ScheduledAt),
				"scheduled_at":          at.Format(time.RFC3339),
			},
		}
		return f.auditRepo.Save(txCtx, NewDispatchAuditLog(txCtx, entry, metadata))
	})
	if err != nil {
		if IsDispatchNotReschedulable(err) {
			return nil, NewBusinessError("DISPATCH_NOT_RESCHEDULABLE", "Dispatch changed status before it could be rescheduled", err)
		}
		return nil, NewBusinessError("DISPATCH_RESCHEDULE_FAILED", "Failed to reschedule dispatch", err)
	}
	return f.GetDispatch(ctx, id)
}

// CancelDispatch soft deletes a dispatch. A dispatch in flight cannot be canceled.
func (f *DispatchFlowImpl) CancelDispatch(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.DispatchResponse, error) {
	d, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch d.Status {
	case models.DispatchStatusDeleted:
		return nil, NewBusinessError("DISPATCH_ALREADY_DELETED", "Dispatch already deleted", ErrDispatchAlreadyDeleted)
	case models.DispatchStatusSending:
		return nil, NewBusinessError("DISPATCH_SENDING", "Dispatch is being sent and cannot be canceled", ErrDispatchSending)
	}

	now := utils.UTCNow()
	err = runInTx(ctx, f.db, func(txCtx context.Context) error {
		ok, err := f.dispatchRepo.TransitionStatus(txCtx, d.ID, d.Status, models.DispatchStatusDeleted, map[string]any{"deleted_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return ErrDispatchSending
		}
		entry := DispatchAuditEntry{
			DispatchID: d.ID,
			Action:     models.DispatchActionCanceled,
			From:       d.Status,
			To:         models.DispatchStatusDeleted,
		}
		return f.auditRepo.Save(txCtx, NewDispatchAuditLog(txCtx, entry, metadata))
	})
	if err != nil {
		if IsDispatchSending(err) {
			return nil, NewBusinessError("DISPATCH_SENDING", "Dispatch changed status before it could be canceled", err)
		}
		return nil, NewBusinessError("DISPATCH_CANCEL_FAILED", "Failed to cancel dispatch", err)
	}

	d.Status = models.DispatchStatusDeleted
	d.DeletedAt = &now
	out := ToDispatchDTO(d, true)
	return &out, nil
}

// ListAuditLogs returns the audit trail of a dispatch, newest first
func (f *DispatchFlowImpl) ListAuditLogs(ctx context.Context, id uint) ([]dto.DispatchAuditLogResponse, error) {
	if _, err := f.load(ctx, id); err != nil {
		return nil, err
	}
	rows, err := f.auditRepo.ByFilter(ctx, models.DispatchAuditLogFilter{DispatchID: &id}, "", maxAuditLogRows, 0)
	if err != nil {
		return nil, NewBusinessError("AUDIT_LOG_LIST_FAILED", "Failed to list audit logs", err)
	}
	out := make([]dto.DispatchAuditLogResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.DispatchAuditLogResponse{
			ID:          r.ID,
			Action:      r.Action,
			FromStatus:  r.FromStatus,
			ToStatus:    r.ToStatus,
			Description: r.Description,
			RequestID:   r.RequestID,
			Success:     r.Success == nil || *r.Success,
			CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// ExportResults renders the per-recipient outcome of a dispatch as an XLSX workbook.
// Recipients keep their dispatch order; those without a recorded outcome are pending.
func (f *DispatchFlowImpl) ExportResults(ctx context.Context, id uint) ([]byte, string, error) {
	d, err := f.load(ctx, id)
	if err != nil {
		return nil, "", err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := sanitizeSheetName(fmt.Sprintf("%s_%d", d.Channel, d.ChunkIndex))
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to prepare workbook", err)
	}
	header := []any{"Recipient", "Status", "Error Code", "Description", "Updated At"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, number := range d.RecipientNumbers {
		outcome, ok := d.PerRecipientResult[number]
		record := []any{number, string(models.RecipientStatePending), "", "", ""}
		if ok {
			record = []any{
				number,
				string(outcome.Status),
				utils.DerefString(outcome.ErrorCode),
				utils.DerefString(outcome.Description),
				outcome.UpdatedAt.UTC().Format(time.RFC3339),
			}
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	summary := "Summary"
	if _, err := xl.NewSheet(summary); err == nil {
		counts := make(map[string]int)
		for _, number := range d.RecipientNumbers {
			state := string(models.RecipientStatePending)
			if outcome, ok := d.PerRecipientResult[number]; ok {
				state = string(outcome.Status)
			}
			counts[state]++
		}
		states := make([]string, 0, len(counts))
		for s := range counts {
			states = append(states, s)
		}
		sort.Strings(states)
		_ = xl.SetSheetRow(summary, "A1", &[]any{"Dispatch", d.UUID.String()})
		_ = xl.SetSheetRow(summary, "A2", &[]any{"Status", string(d.Status)})
		_ = xl.SetSheetRow(summary, "A3", &[]any{"External Group ID", utils.DerefString(d.ExternalGroupID)})
		for i, s := range states {
			cellRef, _ := excelize.CoordinatesToCellName(1, i+5)
			_ = xl.SetSheetRow(summary, cellRef, &[]any{s, counts[s]})
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, "", NewBusinessError("EXPORT_FAILED", "Failed to write workbook", err)
	}
	filename := fmt.Sprintf("dispatch_%s_results.xlsx", d.UUID.String())
	return buf.Bytes(), filename, nil
}

func (f *DispatchFlowImpl) load(ctx context.Context, id uint) (*models.Dispatch, error) {
	d, err := f.dispatchRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LOOKUP_FAILED", "Failed to lookup dispatch", err)
	}
	if d == nil {
		return nil, NewBusinessError("DISPATCH_NOT_FOUND", "Dispatch not found", ErrDispatchNotFound)
	}
	return d, nil
}

// sanitizeSheetName strips characters Excel rejects in sheet names and caps the length at 31
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := strings.TrimSpace(replacer.Replace(name))
	if len(safe) > 31 {
		safe = safe[:31]
	}
	if safe == "" {
		return "Sheet"
	}
	return safe
}
