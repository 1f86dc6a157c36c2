package handlers

import (
	"log"

	"github.com/amirphl/campaign-hub/app/dto"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/gofiber/fiber/v3"
)

// HubContentHandlerInterface defines the contract for hub content handlers
type HubContentHandlerInterface interface {
	CreateHubContent(c fiber.Ctx) error
	GetHubContent(c fiber.Ctx) error
	DeleteHubContent(c fiber.Ctx) error
	AttachDraftBlog(c fiber.Ctx) error
}

type HubContentHandler struct {
	baseHandler
	flow       businessflow.HubContentFlow
	reconciler businessflow.StatusReconcilerFlow
}

func NewHubContentHandler(flow businessflow.HubContentFlow, reconciler businessflow.StatusReconcilerFlow) HubContentHandlerInterface {
	return &HubContentHandler{baseHandler: newBaseHandler(), flow: flow, reconciler: reconciler}
}

// CreateHubContent creates a hub content item
// @Summary Create Hub Content
// @Tags Hubs
// @Accept json
// @Produce json
// @Param request body dto.CreateHubContentRequest true "Hub content data"
// @Success 201 {object} dto.APIResponse{data=dto.HubContentResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/hubs [post]
func (h *HubContentHandler) CreateHubContent(c fiber.Ctx) error {
	var req dto.CreateHubContentRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/hubs")
	defer cancel()

	result, err := h.flow.CreateHubContent(ctx, &req)
	if err != nil {
		if businessflow.IsPayloadInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Title is required", "TITLE_REQUIRED", nil)
		}
		log.Println("Hub content creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Hub content creation failed", businessErrorCode(err, "HUB_CREATE_FAILED"), nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Hub content created successfully", result)
}

// GetHubContent returns a hub content item with its channel status map
// @Summary Get Hub Content
// @Tags Hubs
// @Produce json
// @Param id path int true "Hub content ID"
// @Success 200 {object} dto.APIResponse{data=dto.HubContentResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/hubs/{id} [get]
func (h *HubContentHandler) GetHubContent(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid hub content id", "INVALID_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/hubs/:id")
	defer cancel()

	result, err := h.flow.GetHubContent(ctx, id)
	if err != nil {
		return h.hubError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Hub content retrieved successfully", result)
}

// DeleteHubContent soft deletes a hub content item
// @Summary Delete Hub Content
// @Tags Hubs
// @Produce json
// @Param id path int true "Hub content ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/hubs/{id} [delete]
func (h *HubContentHandler) DeleteHubContent(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid hub content id", "INVALID_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/hubs/:id")
	defer cancel()

	if err := h.flow.DeleteHubContent(ctx, id); err != nil {
		return h.hubError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Hub content deleted successfully", nil)
}

// AttachDraftBlog links a draft blog post to the hub, returning the existing link when present
// @Summary Attach Draft Blog
// @Tags Hubs
// @Produce json
// @Param id path int true "Hub content ID"
// @Success 200 {object} dto.APIResponse{data=dto.AttachDraftBlogResponse} "Existing link"
// @Success 201 {object} dto.APIResponse{data=dto.AttachDraftBlogResponse} "Draft created"
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/hubs/{id}/blog [post]
func (h *HubContentHandler) AttachDraftBlog(c fiber.Ctx) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid hub content id", "INVALID_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/hubs/:id/blog")
	defer cancel()

	result, err := h.reconciler.AttachDraftBlog(ctx, id)
	if err != nil {
		return h.hubError(c, err)
	}
	if result.Created {
		return h.SuccessResponse(c, fiber.StatusCreated, "Draft blog attached", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Draft blog already attached", result)
}

func (h *HubContentHandler) hubError(c fiber.Ctx, err error) error {
	if businessflow.IsHubContentNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Hub content not found", "HUB_CONTENT_NOT_FOUND", nil)
	}
	log.Println("Hub content request failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Hub content request failed", businessErrorCode(err, "HUB_REQUEST_FAILED"), nil)
}
