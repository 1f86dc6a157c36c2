package handlers

import (
	"log"

	"github.com/amirphl/campaign-hub/app/dto"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ShortLinkHandlerInterface defines the contract for short link handlers
type ShortLinkHandlerInterface interface {
	Visit(c fiber.Ctx) error
	CreateShortLink(c fiber.Ctx) error
	GetShortLink(c fiber.Ctx) error
}

type ShortLinkHandler struct {
	baseHandler
	flow businessflow.ShortLinkFlow
}

func NewShortLinkHandler(flow businessflow.ShortLinkFlow) ShortLinkHandlerInterface {
	return &ShortLinkHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Visit resolves a short code and redirects to its target
// @Summary Visit Short Link
// @Tags ShortLinks
// @Produce plain
// @Param code path string true "Short code"
// @Success 302 {string} string "Redirect"
// @Failure 404 {string} string "Missing or expired link"
// @Failure 500 {string} string "Internal error"
// @Router /s/{code} [get]
func (h *ShortLinkHandler) Visit(c fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusNotFound).SendString("not found")
	}

	ctx, cancel := h.createRequestContext(c, "/s/"+code)
	defer cancel()

	target, err := h.flow.Resolve(ctx, code, h.clientMetadata(c))
	if err != nil {
		// Expired and missing links look the same to visitors.
		if businessflow.IsShortLinkNotFound(err) || businessflow.IsShortLinkExpired(err) || businessflow.IsShortLinkCodeNotAllowed(err) {
			return c.Status(fiber.StatusNotFound).SendString("not found")
		}
		log.Println("Visit short link failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}
	return c.Redirect().Status(fiber.StatusFound).To(target)
}

// CreateShortLink shortens a target URL
// @Summary Create Short Link
// @Tags ShortLinks
// @Accept json
// @Produce json
// @Param request body dto.CreateShortLinkRequest true "Short link data"
// @Success 201 {object} dto.APIResponse{data=dto.ShortLinkResponse} "Short link created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 503 {object} dto.APIResponse "Could not allocate a code"
// @Router /api/v1/short-links [post]
func (h *ShortLinkHandler) CreateShortLink(c fiber.Ctx) error {
	var req dto.CreateShortLinkRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/short-links")
	defer cancel()

	result, err := h.flow.CreateShortLink(ctx, &req, h.clientMetadata(c))
	if err != nil {
		switch {
		case businessflow.IsTargetURLInvalid(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Target URL is invalid", "TARGET_URL_INVALID", nil)
		case businessflow.IsShortLinkExpiryInPast(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Expiry must be in the future", "EXPIRY_IN_PAST", nil)
		case businessflow.IsShortCodeCollision(err):
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Could not allocate a short code, please retry", "SHORT_CODE_COLLISION", nil)
		}
		log.Println("Short link creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Short link creation failed", businessErrorCode(err, "SHORT_LINK_CREATION_FAILED"), nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Short link created successfully", result)
}

// GetShortLink returns a short link with its click count
// @Summary Get Short Link
// @Tags ShortLinks
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} dto.APIResponse{data=dto.ShortLinkResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/short-links/{code} [get]
func (h *ShortLinkHandler) GetShortLink(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/short-links/:code")
	defer cancel()

	result, err := h.flow.GetShortLink(ctx, c.Params("code"))
	if err != nil {
		if businessflow.IsShortLinkNotFound(err) || businessflow.IsShortLinkCodeNotAllowed(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Short link not found", "SHORT_LINK_NOT_FOUND", nil)
		}
		log.Println("Get short link failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get short link", businessErrorCode(err, "SHORT_LINK_LOOKUP_FAILED"), nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Short link retrieved successfully", result)
}
