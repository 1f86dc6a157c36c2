package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/amirphl/campaign-hub/app/dto"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/gofiber/fiber/v3"
)

// SchedulerRunner runs one dispatch poll cycle on demand
type SchedulerRunner interface {
	RunOnce(ctx context.Context) *dto.RunSchedulerResponse
}

// DispatchHandlerInterface defines the contract for dispatch handlers
type DispatchHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	ListDispatches(c fiber.Ctx) error
	GetDispatch(c fiber.Ctx) error
	UpdateDispatch(c fiber.Ctx) error
	RescheduleDispatch(c fiber.Ctx) error
	CancelDispatch(c fiber.Ctx) error
	ListAuditLogs(c fiber.Ctx) error
	ExportResults(c fiber.Ctx) error
	RunScheduler(c fiber.Ctx) error
}

type DispatchHandler struct {
	baseHandler
	batching businessflow.DispatchBatchingFlow
	flow     businessflow.DispatchFlow
	runner   SchedulerRunner
}

func NewDispatchHandler(batching businessflow.DispatchBatchingFlow, flow businessflow.DispatchFlow, runner SchedulerRunner) DispatchHandlerInterface {
	return &DispatchHandler{
		baseHandler: newBaseHandler(),
		batching:    batching,
		flow:        flow,
		runner:      runner,
	}
}

// CreateCampaign splits a recipient list into dispatches
// @Summary Create Dispatch Campaign
// @Description Chunks recipients into dispatches of at most 200 numbers that share one message
// @Tags Dispatches
// @Accept json
// @Produce json
// @Param request body dto.CreateDispatchCampaignRequest true "Campaign data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateDispatchCampaignResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse "Hub content not found"
// @Router /api/v1/dispatches [post]
func (h *DispatchHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateDispatchCampaignRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatches")
	defer cancel()

	result, err := h.batching.CreateCampaign(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.dispatchError(c, err, "Dispatch creation failed")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// ListDispatches lists dispatches by filter
// @Summary List Dispatches
// @Tags Dispatches
// @Produce json
// @Param hub_content_id query int false "Hub content ID"
// @Param batch_group_id query string false "Batch group UUID"
// @Param status query string false "Status"
// @Param channel query string false "Channel"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListDispatchesResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/dispatches [get]
func (h *DispatchHandler) ListDispatches(c fiber.Ctx) error {
	req := dto.ListDispatchesRequest{}
	if v := c.Query("hub_content_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid hub_content_id", "INVALID_QUERY", nil)
		}
		hubID := uint(id)
		req.HubContentID = &hubID
	}
	if v := c.Query("batch_group_id"); v != "" {
		req.BatchGroupID = &v
	}
	if v := c.Query("status"); v != "" {
		req.Status = &v
	}
	if v := c.Query("channel"); v != "" {
		req.Channel = &v
	}
	for name, dst := range map[string]*int{"page": &req.Page, "limit": &req.Limit} {
		if v := c.Query(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return h.ErrorResponse(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid %s", name), "INVALID_QUERY", nil)
			}
			*dst = n
		}
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatches")
	defer cancel()

	result, err := h.flow.ListDispatches(ctx, &req)
	if err != nil {
		return h.dispatchError(c, err, "Failed to list dispatches")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dispatches retrieved successfully", result)
}

// GetDispatch returns one dispatch with its per-recipient results
// @Summary Get Dispatch
// @Tags Dispatches
// @Produce json
// @Param id path int true "Dispatch ID"
// @Success 200 {object} dto.APIResponse{data=dto.DispatchResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/dispatches/{id} [get]
func (h *DispatchHandler) GetDispatch(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatches/:id")
	defer cancel()

	result, err := h.flow.GetDispatch(ctx, id)
	if err != nil {
		return h.dispatchError(c, err, "Failed to get dispatch")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dispatch retrieved successfully", result)
}

// UpdateDispatch edits a draft or scheduled dispatch
// @Summary Update Dispatch
// @Tags Dispatches
// @Accept json
// @Produce json
// @Param id path int true "Dispatch ID"
// @Param request body dto.UpdateDispatchRequest true "Fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.DispatchResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Dispatch is no longer editable"
// @Router /api/v1/dispatches/{id} [put]
func (h *DispatchHandler) UpdateDispatch(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_ID", nil)
	}
	var req dto.UpdateDispatchRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatches/:id")
	defer cancel()

	result, err := h.flow.UpdateDispatch(ctx, id, &req, h.clientMetadata(c))
	if err != nil {
		return h.dispatchError(c, err, "Failed to update dispatch")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dispatch updated successfully", result)
}

// RescheduleDispatch moves a dispatch to a new send time
// @Summary Reschedule Dispatch
// @Description Allowed from draft, scheduled and failed. Rescheduling to the current time of a scheduled dispatch changes nothing.
// @Tags Dispatches
// @Accept json
// @Produce json
// @Param id path int true "Dispatch ID"
// @Param request body dto.RescheduleDispatchRequest true "New schedule"
// @Success 200 {object} dto.APIResponse{data=dto.DispatchResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/dispatches/{id}/schedule [put]
func (h *DispatchHandler) RescheduleDispatch(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_ID", nil)
	}
	var req dto.RescheduleDispatchRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatches/:id/schedule")
	defer cancel()

	result, err := h.flow.RescheduleDispatch(ctx, id, &req, h.clientMetadata(c))
	if err != nil {
		return h.dispatchError(c, err, "Failed to reschedule dispatch")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dispatch rescheduled successfully", result)
}

// CancelDispatch soft deletes a dispatch that is not being sent
// @Summary Cancel Dispatch
// @Tags Dispatches
// @Produce json
// @Param id path int true "Dispatch ID"
// @Success 200 {object} dto.APIResponse{data=dto.DispatchResponse}
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/dispatches/{id} [delete]
func (h *DispatchHandler) CancelDispatch(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatches/:id")
	defer cancel()

	result, err := h.flow.CancelDispatch(ctx, id, h.clientMetadata(c))
	if err != nil {
		return h.dispatchError(c, err, "Failed to cancel dispatch")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dispatch canceled successfully", result)
}

// ListAuditLogs returns the audit trail of a dispatch
// @Summary List Dispatch Audit Logs
// @Tags Dispatches
// @Produce json
// @Param id path int true "Dispatch ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.DispatchAuditLogResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/dispatches/{id}/audit-logs [get]
func (h *DispatchHandler) ListAuditLogs(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatches/:id/audit-logs")
	defer cancel()

	result, err := h.flow.ListAuditLogs(ctx, id)
	if err != nil {
		return h.dispatchError(c, err, "Failed to list audit logs")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Audit logs retrieved successfully", result)
}

// ExportResults downloads the per-recipient results as XLSX
// @Summary Export Dispatch Results
// @Tags Dispatches
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Dispatch ID"
// @Success 200 {file} file
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/dispatches/{id}/results.xlsx [get]
func (h *DispatchHandler) ExportResults(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid dispatch id", "INVALID_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/dispatches/:id/results.xlsx")
	defer cancel()

	data, filename, err := h.flow.ExportResults(ctx, id)
	if err != nil {
		return h.dispatchError(c, err, "Failed to export results")
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(data)
}

// RunScheduler runs one poll cycle immediately
// @Summary Run Dispatch Scheduler
// @Tags Scheduler
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.RunSchedulerResponse}
// @Failure 503 {object} dto.APIResponse "Scheduler disabled"
// @Router /api/v1/scheduler/run [post]
func (h *DispatchHandler) RunScheduler(c fiber.Ctx) error {
	if h.runner == nil {
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Scheduler is disabled", "SCHEDULER_DISABLED", nil)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/scheduler/run")
	defer cancel()

	// the request deadline is shorter than a send; each send carries its own
	result := h.runner.RunOnce(context.WithoutCancel(ctx))
	return h.SuccessResponse(c, fiber.StatusOK, "Poll cycle completed", result)
}

func (h *DispatchHandler) dispatchError(c fiber.Ctx, err error, fallback string) error {
	switch {
	case businessflow.IsDispatchNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Dispatch not found", "DISPATCH_NOT_FOUND", nil)
	case businessflow.IsHubContentNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Hub content not found", "HUB_CONTENT_NOT_FOUND", nil)
	case businessflow.IsChannelInvalid(err),
		businessflow.IsRecipientsRequired(err),
		businessflow.IsPayloadInvalid(err),
		businessflow.IsScheduleTimeRequired(err),
		businessflow.IsDispatchUpdateRequired(err),
		businessflow.IsInvalidPage(err),
		businessflow.IsInvalidPageSize(err),
		businessflow.IsInvalidDispatchTransition(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), businessErrorCode(err, "INVALID_REQUEST"), nil)
	case businessflow.IsDispatchNotEditable(err),
		businessflow.IsDispatchNotReschedulable(err),
		businessflow.IsDispatchAlreadyDeleted(err),
		businessflow.IsDispatchSending(err):
		return h.ErrorResponse(c, fiber.StatusConflict, err.Error(), businessErrorCode(err, "DISPATCH_CONFLICT"), nil)
	}
	log.Println(fallback, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallback, businessErrorCode(err, "DISPATCH_REQUEST_FAILED"), nil)
}
