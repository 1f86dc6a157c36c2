package handlers

import (
	"log"

	"github.com/amirphl/campaign-hub/app/dto"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/gofiber/fiber/v3"
)

// EngagementHandlerInterface defines the contract for landing page beacons and metrics
type EngagementHandlerInterface interface {
	RecordView(c fiber.Ctx) error
	RecordPhoneClick(c fiber.Ctx) error
	RecordFormSubmission(c fiber.Ctx) error
	GetCampaignMetrics(c fiber.Ctx) error
}

type EngagementHandler struct {
	baseHandler
	flow businessflow.EngagementFlow
}

func NewEngagementHandler(flow businessflow.EngagementFlow) EngagementHandlerInterface {
	return &EngagementHandler{baseHandler: newBaseHandler(), flow: flow}
}

// RecordView records a landing page view
// @Summary Record Page View
// @Tags Engagement
// @Accept json
// @Produce json
// @Param request body dto.RecordViewRequest true "View beacon"
// @Success 202 {object} dto.APIResponse{data=dto.RecordEngagementResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/engagement/views [post]
func (h *EngagementHandler) RecordView(c fiber.Ctx) error {
	var req dto.RecordViewRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}
	if req.Referer == nil {
		if ref := c.Get("Referer"); ref != "" {
			req.Referer = &ref
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/engagement/views")
	defer cancel()

	result, err := h.flow.RecordView(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.engagementError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, result.Message, result)
}

// RecordPhoneClick records a click on the campaign phone number
// @Summary Record Phone Click
// @Tags Engagement
// @Accept json
// @Produce json
// @Param request body dto.RecordCampaignEventRequest true "Phone click beacon"
// @Success 202 {object} dto.APIResponse{data=dto.RecordEngagementResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/engagement/phone-clicks [post]
func (h *EngagementHandler) RecordPhoneClick(c fiber.Ctx) error {
	var req dto.RecordCampaignEventRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/engagement/phone-clicks")
	defer cancel()

	result, err := h.flow.RecordPhoneClick(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.engagementError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, result.Message, result)
}

// RecordFormSubmission records a lead form submission
// @Summary Record Form Submission
// @Tags Engagement
// @Accept json
// @Produce json
// @Param request body dto.RecordCampaignEventRequest true "Form submission beacon"
// @Success 202 {object} dto.APIResponse{data=dto.RecordEngagementResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/engagement/form-submissions [post]
func (h *EngagementHandler) RecordFormSubmission(c fiber.Ctx) error {
	var req dto.RecordCampaignEventRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/engagement/form-submissions")
	defer cancel()

	result, err := h.flow.RecordFormSubmission(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.engagementError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, result.Message, result)
}

// GetCampaignMetrics returns engagement counters and the conversion rate
// @Summary Get Campaign Metrics
// @Tags Engagement
// @Produce json
// @Param campaign_id path string true "Campaign identifier"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignMetricsResponse}
// @Router /api/v1/campaigns/{campaign_id}/metrics [get]
func (h *EngagementHandler) GetCampaignMetrics(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:campaign_id/metrics")
	defer cancel()

	result, err := h.flow.GetCampaignMetrics(ctx, c.Params("campaign_id"))
	if err != nil {
		return h.engagementError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign metrics retrieved successfully", result)
}

func (h *EngagementHandler) engagementError(c fiber.Ctx, err error) error {
	if businessflow.IsCampaignIDRequired(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign id is required", "CAMPAIGN_ID_REQUIRED", nil)
	}
	log.Println("Engagement request failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process engagement event", businessErrorCode(err, "ENGAGEMENT_FAILED"), nil)
}
